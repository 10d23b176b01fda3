// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pak is an lz4 backed archive format for renderpacks.
// The archive itself is not compressed, every file is compressed
// individually so it can be located up front and decompressed on
// the fly. That makes the format memory-map friendly and suited
// for streaming pass descriptions and shader binaries straight
// into the renderer. Archives can be read concurrently.
package pak

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
)

// package errors
var (
	ErrFileFormat = errors.New("corrupted or not a pak archive")
	ErrNotFound   = errors.New("no such file in archive")
	ErrTempFail   = errors.New("temporary folder or file operation failed")
)

// Sizes relevant to the archive prologue.
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 8
)

var magic = [MagicLength]byte{'O', 'P', 'K', 0}

// IndexEntry is info for one file in the archive index.
// Offset is relative to the start of the data section.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the archive header, gob-encoded after the magic.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

func int64ToBinary(num int64) []byte {
	buf := bytes.NewBuffer([]byte{})
	if err := binary.Write(buf, binary.LittleEndian, &num); err != nil {
		panic(err) // If this thing fails you're probably having bigger problems
	}
	return buf.Bytes()
}

func binaryToInt64(bts []byte) (int64, error) {
	var num int64
	if err := binary.Read(bytes.NewReader(bts), binary.LittleEndian, &num); err != nil {
		return 0, err
	}
	return num, nil
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	enc := gob.NewEncoder(&encoded)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	return gob.NewDecoder(bytes.NewBuffer(bts)).Decode(obj)
}
