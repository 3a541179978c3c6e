package binfmt

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
)

// ELFExports lists the global or weak function symbols defined in the
// .text section of an ELF object.
//
// A non-empty .dynsym is read exclusively: it is what a plugin exposes to
// the dynamic loader, and it survives stripping. .symtab is consulted only
// when .dynsym is missing or empty. A cgo executable therefore reports its
// cgo entry points (crosscall2 and friends) and not main.main.
func ELFExports(r io.ReaderAt) ([]string, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("parsing ELF headers: %w", err)
	}
	defer f.Close()

	text := f.Section(".text")
	if text == nil {
		return nil, nil
	}

	syms, err := f.DynamicSymbols()
	if err != nil || len(syms) == 0 {
		syms, err = f.Symbols()
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading symbols: %w", err)
		}
	}

	var exports []string
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Section == elf.SHN_UNDEF {
			continue
		}
		if bind := elf.ST_BIND(s.Info); bind != elf.STB_GLOBAL && bind != elf.STB_WEAK {
			continue
		}
		if s.Value < text.Addr || s.Value >= text.Addr+text.Size {
			continue
		}
		exports = append(exports, s.Name)
	}
	return exports, nil
}
