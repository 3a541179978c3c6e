package binfmt

import (
	"bytes"
	"debug/elf"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestELFExports_TestBinary(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("test binary is not ELF on " + runtime.GOOS)
	}
	exe, err := os.Executable()
	require.NoError(t, err)
	f, err := os.Open(exe)
	require.NoError(t, err)
	defer f.Close()

	names, err := ELFExports(f)
	require.NoError(t, err)

	ef, err := elf.NewFile(f)
	require.NoError(t, err)
	defer ef.Close()
	dynsym, _ := ef.DynamicSymbols()

	if len(dynsym) > 0 {
		// cgo binaries: only the dynamic table is consulted.
		dynamic := make(map[string]bool, len(dynsym))
		for _, s := range dynsym {
			dynamic[s.Name] = true
		}
		for _, n := range names {
			assert.True(t, dynamic[n], "%s is not in .dynsym", n)
		}
		assert.NotContains(t, names, "main.main")
		return
	}
	if len(names) == 0 {
		t.Skip("test binary carries no symbol table")
	}
	assert.Contains(t, names, "main.main")
}

func TestELFExports_Plugin(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a plugin")
	}
	if runtime.GOOS != "linux" {
		t.Skip("plugins are not ELF on " + runtime.GOOS)
	}
	gobin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module fixture\n\ngo 1.24\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(`package main

func Test_valid() {}

func helper() int { return 1 }

func main() { _ = helper() }
`), 0644))

	out := filepath.Join(dir, "fixture.so")
	cmd := exec.Command(gobin, "build", "-buildmode=plugin", "-o", out, ".")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1", "GOFLAGS=")
	if msg, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("plugin build unavailable: %v\n%s", err, msg)
	}

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	names, err := ELFExports(f)
	require.NoError(t, err)

	found := false
	for _, n := range names {
		if strings.HasSuffix(n, ".Test_valid") {
			found = true
			break
		}
	}
	assert.True(t, found, "Test_valid not exported: %v", names)
}

func TestELFExports_NotELF(t *testing.T) {
	_, err := ELFExports(bytes.NewReader([]byte("\x7fELX garbage")))
	assert.Error(t, err)
}
