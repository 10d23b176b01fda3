// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pak_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okapi3d/okapi/renderpack/pak"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func buildArchive(t *testing.T) []byte {
	t.Helper()
	builder, err := pak.NewBuilder(pak.Header{
		Author:      "okapi",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("passes/forward", bytes.NewReader([]byte(testString1))); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("shaders/forward.vert", bytes.NewReader([]byte(testString2))); err != nil {
		t.Fatal(err)
	}

	buf := bytes.NewBuffer([]byte{})
	if written, err := builder.WriteTo(buf); err != nil {
		t.Fatal(err)
	} else {
		t.Logf("written %d", written)
	}
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	raw := buildArchive(t)

	ar, err := pak.Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}

	got, err := ar.ReadAll("passes/forward")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != testString1 {
		t.Errorf("contents do not match up: %q", got)
	}

	got, err = ar.ReadAll("shaders/forward.vert")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != testString2 {
		t.Errorf("contents do not match up: %q", got)
	}
}

func TestNames(t *testing.T) {
	ar, err := pak.Open(bytes.NewReader(buildArchive(t)))
	if err != nil {
		t.Fatal(err)
	}
	names := ar.Names()
	if len(names) != 2 || names[0] != "passes/forward" || names[1] != "shaders/forward.vert" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestMissingFile(t *testing.T) {
	ar, err := pak.Open(bytes.NewReader(buildArchive(t)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ar.ReadAll("nope"); err != pak.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBadMagic(t *testing.T) {
	if _, err := pak.Open(bytes.NewReader([]byte("definitely not an archive"))); err != pak.ErrFileFormat {
		t.Errorf("expected ErrFileFormat, got %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.opk")
	if err := os.WriteFile(path, buildArchive(t), 0o644); err != nil {
		t.Fatal(err)
	}

	ar, err := pak.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ar.Close()

	got, err := ar.ReadAll("passes/forward")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != testString1 {
		t.Errorf("contents do not match up: %q", got)
	}
}
