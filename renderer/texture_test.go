// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer_test

import (
	"image"
	"testing"
)

func testImage(width, height int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func TestCreateTexture(t *testing.T) {
	r := newTestRenderer(t, testPack())
	defer r.Destroy()

	if err := r.CreateTexture("Splash", testImage(4, 4)); err != nil {
		t.Fatal(err)
	}
	if err := r.CreateTexture("Splash", testImage(4, 4)); err == nil {
		t.Fatal("expected an error for a duplicate texture name")
	}
}

func TestExternalTextureSurvivesReload(t *testing.T) {
	r := newTestRenderer(t, testPack())
	defer r.Destroy()

	if err := r.CreateTexture("Splash", testImage(4, 4)); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadRenderpack("first"); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadRenderpack("second"); err != nil {
		t.Fatal(err)
	}

	// The name staying taken means the reloads left it alone.
	if err := r.CreateTexture("Splash", testImage(4, 4)); err == nil {
		t.Fatal("texture did not survive the renderpack reloads")
	}

	r.DestroyTexture("Splash")
	if err := r.CreateTexture("Splash", testImage(4, 4)); err != nil {
		t.Fatalf("name not released after DestroyTexture: %v", err)
	}
}
