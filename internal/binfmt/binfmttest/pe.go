// Package binfmttest builds small object images for tests.
package binfmttest

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

// Export is one named entry of a PE export table.
type Export struct {
	Name string
	RVA  uint32
}

// Layout of the image PE builds.
const (
	TextRVA  = 0x1000
	RdataRVA = 0x2000

	textRaw     = 0x200
	rdataRaw    = 0x400
	sectionSize = 0x200
)

// PE assembles a minimal PE32+ DLL with a .text section at TextRVA and a
// .rdata section at RdataRVA holding the export directory. Without exports
// the image has no export directory.
func PE(exports []Export) []byte {
	img := make([]byte, rdataRaw+sectionSize)
	img[0], img[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(img[0x3c:], 0x40)
	copy(img[0x40:], "PE\x00\x00")

	var hdr bytes.Buffer
	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     2,
		SizeOfOptionalHeader: 240,
		Characteristics:      pe.IMAGE_FILE_DLL | pe.IMAGE_FILE_EXECUTABLE_IMAGE,
	}
	oh := pe.OptionalHeader64{
		Magic:               0x20b,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         0x3000,
		SizeOfHeaders:       0x200,
		NumberOfRvaAndSizes: 16,
	}
	if len(exports) > 0 {
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = pe.DataDirectory{VirtualAddress: RdataRVA, Size: 0x100}
	}
	sections := []pe.SectionHeader32{
		{
			Name:             [8]uint8{'.', 't', 'e', 'x', 't'},
			VirtualSize:      sectionSize,
			VirtualAddress:   TextRVA,
			SizeOfRawData:    sectionSize,
			PointerToRawData: textRaw,
			Characteristics:  pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ,
		},
		{
			Name:             [8]uint8{'.', 'r', 'd', 'a', 't', 'a'},
			VirtualSize:      sectionSize,
			VirtualAddress:   RdataRVA,
			SizeOfRawData:    sectionSize,
			PointerToRawData: rdataRaw,
			Characteristics:  pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ,
		},
	}
	for _, v := range []any{fh, oh, sections} {
		if err := binary.Write(&hdr, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	copy(img[0x44:], hdr.Bytes())

	if len(exports) == 0 {
		return img
	}

	const (
		funcsRVA    = RdataRVA + 0x28
		namesRVA    = RdataRVA + 0x40
		ordinalsRVA = RdataRVA + 0x50
		stringsRVA  = RdataRVA + 0x60
	)
	raw := func(rva uint32) []byte { return img[rdataRaw+rva-RdataRVA:] }

	dir := raw(RdataRVA)
	binary.LittleEndian.PutUint32(dir[20:], uint32(len(exports)))
	binary.LittleEndian.PutUint32(dir[24:], uint32(len(exports)))
	binary.LittleEndian.PutUint32(dir[28:], funcsRVA)
	binary.LittleEndian.PutUint32(dir[32:], namesRVA)
	binary.LittleEndian.PutUint32(dir[36:], ordinalsRVA)

	next := uint32(stringsRVA)
	for i, e := range exports {
		binary.LittleEndian.PutUint32(raw(funcsRVA+uint32(i)*4), e.RVA)
		binary.LittleEndian.PutUint32(raw(namesRVA+uint32(i)*4), next)
		binary.LittleEndian.PutUint16(raw(ordinalsRVA+uint32(i)*2), uint16(i))
		copy(raw(next), e.Name+"\x00")
		next += uint32(len(e.Name)) + 1
	}
	return img
}
