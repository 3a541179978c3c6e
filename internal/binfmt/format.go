package binfmt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnknownFormat is returned for objects that are neither ELF nor PE.
var ErrUnknownFormat = errors.New("unknown object format")

// Format is the container format of an object file.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatPE
)

func (f Format) String() string {
	switch f {
	case FormatELF:
		return "ELF"
	case FormatPE:
		return "PE"
	}
	return "unknown"
}

// Detect reads the magic bytes at the start of r.
func Detect(r io.ReaderAt) Format {
	var magic [4]byte
	if n, _ := r.ReadAt(magic[:], 0); n < 2 {
		return FormatUnknown
	}
	switch {
	case bytes.Equal(magic[:], []byte("\x7fELF")):
		return FormatELF
	case magic[0] == 'M' && magic[1] == 'Z':
		return FormatPE
	}
	return FormatUnknown
}

// Exports lists the exported code symbols of r with the lister matching
// its format.
func Exports(r io.ReaderAt) ([]string, error) {
	switch Detect(r) {
	case FormatELF:
		return ELFExports(r)
	case FormatPE:
		return PEExports(r)
	}
	return nil, ErrUnknownFormat
}

// ExportsFile is Exports for the object at path.
func ExportsFile(path string) ([]string, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, FormatUnknown, err
	}
	defer f.Close()
	format := Detect(f)
	names, err := Exports(f)
	if err != nil {
		return nil, format, fmt.Errorf("%s: %w", path, err)
	}
	return names, format, nil
}
