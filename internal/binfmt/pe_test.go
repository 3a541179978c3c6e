package binfmt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocut/internal/binfmt/binfmttest"
)

func TestPEExports(t *testing.T) {
	img := binfmttest.PE([]binfmttest.Export{
		{Name: "test_valid", RVA: 0x1010},
		{Name: "test_other", RVA: 0x1020},
		{Name: "data_symbol", RVA: 0x2100},
	})

	names, err := PEExports(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, []string{"test_valid", "test_other"}, names)
}

func TestPEExports_NoExportDirectory(t *testing.T) {
	img := binfmttest.PE(nil)

	names, err := PEExports(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPEExports_NotPE(t *testing.T) {
	_, err := PEExports(bytes.NewReader([]byte("definitely not an image")))
	assert.Error(t, err)
}
