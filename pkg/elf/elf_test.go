package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesValidMagic(t *testing.T) {
	code := make([]byte, 8)
	img := Generate(code)
	require.NotEmpty(t, img)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, img[0:4])
}

func TestGenerateEmbedsCodeVerbatim(t *testing.T) {
	code := []byte{0x13, 0x05, 0x00, 0x00, 0x67, 0x80, 0x00, 0x00}
	img := Generate(code)

	parsed, err := Parse(img)
	require.NoError(t, err)

	text, ok := parsed.TextSection()
	require.True(t, ok)
	assert.Equal(t, code, text)
}

func TestParseRoundTripsHeaderFields(t *testing.T) {
	code := make([]byte, 16)
	img := Generate(code)

	parsed, err := Parse(img)
	require.NoError(t, err)

	assert.EqualValues(t, elfclass32, parsed.Header.Class)
	assert.EqualValues(t, emRiscV, parsed.Header.Machine)
	assert.EqualValues(t, etExec, parsed.Header.Type)
	assert.EqualValues(t, 0, parsed.Header.Entry)
	assert.EqualValues(t, 3, parsed.Header.ShNum)
	assert.EqualValues(t, 1, parsed.Header.PhNum)
}

func TestParseRejectsTooSmall(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseRejectsBadMagic(t *testing.T) {
	img := Generate(nil)
	img[0] = 0x00
	_, err := Parse(img)
	assert.Error(t, err)
}

func TestParseResolvesSectionNames(t *testing.T) {
	img := Generate([]byte{0x13, 0x00, 0x00, 0x00})
	parsed, err := Parse(img)
	require.NoError(t, err)

	require.Len(t, parsed.Sections, 3)
	assert.Equal(t, "", parsed.Sections[0].Name)
	assert.Equal(t, ".text", parsed.Sections[1].Name)
	assert.Equal(t, ".shstrtab", parsed.Sections[2].Name)
}

func TestDumpReportsSectionsAndDisassembly(t *testing.T) {
	code := []byte{0x13, 0x05, 0x00, 0x00}
	img := Generate(code)

	report, err := Dump(img, func(c []byte) string {
		return "addi a0, zero, 0\n"
	})
	require.NoError(t, err)

	assert.Contains(t, report, "=== ELF Header ===")
	assert.Contains(t, report, "=== Program Headers ===")
	assert.Contains(t, report, "=== Section Headers ===")
	assert.Contains(t, report, ".text")
	assert.Contains(t, report, ".shstrtab")
	assert.Contains(t, report, "=== Disassembled Code (.text) ===")
	assert.Contains(t, report, "addi a0, zero, 0")
}

func TestDumpWithoutDisassemblerOmitsCodeSection(t *testing.T) {
	img := Generate([]byte{0x13, 0x00, 0x00, 0x00})
	report, err := Dump(img, nil)
	require.NoError(t, err)
	assert.NotContains(t, report, "Disassembled Code")
}
