// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pak

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pierrec/lz4"
)

// NewBuilder creates a new Builder. Do not fill the Index in
// the header, it will be overwritten anyway.
func NewBuilder(header Header) (*Builder, error) {
	temp, err := os.MkdirTemp("", "pakBuilder")
	if err != nil {
		return nil, ErrTempFail
	}
	builder := &Builder{
		tempDir: temp,
		header:  header,
	}
	runtime.SetFinalizer(builder, func(builder *Builder) {
		os.RemoveAll(builder.tempDir)
	})
	return builder, nil
}

type tempFile struct {

	// Name is the actual name of the file
	Name string

	// TempName is the temporary name given by the Builder
	TempName string

	// Size of the original data
	Size int64

	Compressed int64
}

// Builder assembles an archive. Archives are versioned and cannot be
// appended to. Every Add compresses the data into a temporary file,
// WriteTo bundles them together behind the index.
type Builder struct {
	tempDir string
	header  Header

	mutex sync.Mutex
	files []tempFile
}

// Add appends data to the builder with a given name.
// Will block until lz4 finishes compression. Is safe
// to use concurrently in different goroutines.
func (b *Builder) Add(name string, data io.Reader) error {
	tempName := strconv.Itoa(time.Now().Nanosecond())
	f, err := os.Create(filepath.Join(b.tempDir, tempName))
	if err != nil {
		return ErrTempFail
	}
	defer f.Close()

	writer := lz4.NewWriter(f)
	written, err := io.Copy(writer, data)
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return ErrTempFail
	}
	info, err := f.Stat()
	if err != nil {
		return ErrTempFail
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.files = append(b.files, tempFile{
		Name:       name,
		TempName:   tempName,
		Size:       written,
		Compressed: info.Size(),
	})
	return nil
}

// WriteTo bundles everything added so far into a ready to use
// archive. The builder is drained afterwards.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	header := b.header
	var offset int64
	for _, v := range b.files {
		header.Index = append(header.Index, IndexEntry{
			Name:           v.Name,
			Size:           v.Size,
			CompressedSize: v.Compressed,
			Offset:         offset,
		})
		offset += v.Compressed
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, err
	}

	var total int64
	n, err := w.Write(magic[:])
	total += int64(n)
	if err != nil {
		return total, err
	}
	n, err = w.Write(int64ToBinary(int64(len(rawHeader))))
	total += int64(n)
	if err != nil {
		return total, err
	}
	n, err = w.Write(rawHeader)
	total += int64(n)
	if err != nil {
		return total, err
	}

	for _, v := range b.files {
		f, err := os.Open(filepath.Join(b.tempDir, v.TempName))
		if err != nil {
			return total, ErrTempFail
		}
		copied, err := io.Copy(w, f)
		f.Close()
		total += copied
		if err != nil {
			return total, err
		}
	}

	b.files = b.files[:0]
	return total, nil
}
