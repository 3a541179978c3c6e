package binfmt

import (
	"debug/pe"
	"fmt"
	"io"
)

const (
	exportDirSize = 40

	exportNumberOfNames     = 24
	exportAddressOfFuncs    = 28
	exportAddressOfNames    = 32
	exportAddressOfOrdinals = 36

	// maxExports guards against absurd counts in corrupt headers.
	maxExports = 1 << 16
)

// PEExports lists the exported names of a PE/COFF image whose address lies
// inside the code section. An image without an export directory yields an
// empty list.
func PEExports(r io.ReaderAt) ([]string, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("parsing PE headers: %w", err)
	}
	defer f.Close()

	var dir pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT]
		}
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT]
		}
	}
	if dir.VirtualAddress == 0 || dir.Size < exportDirSize {
		return nil, nil
	}

	img := newPEImage(r, f.Sections)
	code := img.codeSection()
	if code == nil {
		return nil, nil
	}

	base, ok := img.offset(dir.VirtualAddress)
	if !ok {
		return nil, nil
	}
	count, err := img.Uint32(base + exportNumberOfNames)
	if err != nil {
		return nil, err
	}
	if count > maxExports {
		return nil, fmt.Errorf("export directory lists %d names", count)
	}

	var rvas [3]uint32
	for i, field := range []int64{exportAddressOfFuncs, exportAddressOfNames, exportAddressOfOrdinals} {
		if rvas[i], err = img.Uint32(base + field); err != nil {
			return nil, err
		}
	}
	funcs, okF := img.offset(rvas[0])
	names, okN := img.offset(rvas[1])
	ordinals, okO := img.offset(rvas[2])
	if !okF || !okN || !okO {
		return nil, fmt.Errorf("%w: export tables outside any section", ErrOutOfBounds)
	}

	var exports []string
	for i := int64(0); i < int64(count); i++ {
		nameRVA, err := img.Uint32(names + i*4)
		if err != nil {
			return nil, err
		}
		ordinal, err := img.Uint16(ordinals + i*2)
		if err != nil {
			return nil, err
		}
		funcRVA, err := img.Uint32(funcs + int64(ordinal)*4)
		if err != nil {
			return nil, err
		}
		if funcRVA < code.VirtualAddress || funcRVA-code.VirtualAddress >= sectionSpan(code) {
			continue
		}
		nameOff, ok := img.offset(nameRVA)
		if !ok {
			continue
		}
		name, err := img.CString(nameOff)
		if err != nil {
			return nil, err
		}
		exports = append(exports, name)
	}
	return exports, nil
}

type peImage struct {
	*Reader
	sections []*pe.Section
}

func newPEImage(r io.ReaderAt, sections []*pe.Section) *peImage {
	var size int64
	for _, s := range sections {
		if end := int64(s.Offset) + int64(s.Size); end > size {
			size = end
		}
	}
	return &peImage{Reader: NewReader(r, size), sections: sections}
}

func (p *peImage) codeSection() *pe.Section {
	for _, s := range p.sections {
		if s.Characteristics&pe.IMAGE_SCN_CNT_CODE != 0 {
			return s
		}
	}
	for _, s := range p.sections {
		if s.Name == ".text" {
			return s
		}
	}
	return nil
}

// offset translates a relative virtual address into a file offset.
func (p *peImage) offset(rva uint32) (int64, bool) {
	for _, s := range p.sections {
		if rva >= s.VirtualAddress && rva-s.VirtualAddress < s.Size {
			return int64(s.Offset) + int64(rva-s.VirtualAddress), true
		}
	}
	return 0, false
}

func sectionSpan(s *pe.Section) uint32 {
	if s.VirtualSize > s.Size {
		return s.VirtualSize
	}
	return s.Size
}
