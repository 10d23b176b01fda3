// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pak

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4"
	"golang.org/x/exp/mmap"
)

// Open reads the archive index from r. Returns ErrFileFormat
// when r does not hold a pak archive.
func Open(r io.ReaderAt) (*Archive, error) {
	magicBytes := make([]byte, MagicLength)
	if num, err := r.ReadAt(magicBytes, 0); err != nil {
		return nil, err
	} else if num < MagicLength || !bytes.Equal(magicBytes, magic[:]) {
		return nil, ErrFileFormat
	}

	headerSizeBytes := make([]byte, HeaderSizeNumberLength)
	if num, err := r.ReadAt(headerSizeBytes, MagicLength); err != nil {
		return nil, err
	} else if num < HeaderSizeNumberLength {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToInt64(headerSizeBytes)
	if err != nil || headerSize <= 0 {
		return nil, ErrFileFormat
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); err != nil {
		return nil, err
	} else if int64(num) < headerSize {
		return nil, ErrFileFormat
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, ErrFileFormat
	}

	return &Archive{
		reader:    r,
		header:    header,
		dataStart: MagicLength + HeaderSizeNumberLength + headerSize,
	}, nil
}

// OpenFile memory-maps the archive at path and reads its index.
func OpenFile(path string) (*Archive, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ar, err := Open(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	ar.closer = r
	return ar, nil
}

// Archive provides concurrent access to the files of one pak file.
type Archive struct {
	reader    io.ReaderAt
	header    Header
	dataStart int64
	closer    io.Closer
}

// Header returns a copy of the archive header.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists the file names in index order.
func (a *Archive) Names() []string {
	names := make([]string, len(a.header.Index))
	for idx, entry := range a.header.Index {
		names[idx] = entry.Name
	}
	return names
}

// ReadAll decompresses and returns the entire contents of the
// named file. Returns ErrNotFound for names not in the index.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	entry, ok := a.find(name)
	if !ok {
		return nil, ErrNotFound
	}

	section := io.NewSectionReader(a.reader, a.dataStart+entry.Offset, entry.CompressedSize)
	out := make([]byte, 0, entry.Size)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, lz4.NewReader(section)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close releases the underlying mapping when the archive was
// opened with OpenFile.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *Archive) find(name string) (IndexEntry, bool) {
	for _, entry := range a.header.Index {
		if entry.Name == name {
			return entry, true
		}
	}
	return IndexEntry{}, false
}
