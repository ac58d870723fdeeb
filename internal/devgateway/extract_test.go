// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devgateway

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDOCX returns a minimal .docx holding one paragraph per entry.
func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, p)
	}
	xmlDoc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(xmlDoc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildPDF returns a PDF-like byte stream with one deflated content stream.
func buildPDF(t *testing.T, content string) []byte {
	t.Helper()
	var deflated bytes.Buffer
	zw := zlib.NewWriter(&deflated)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n1 0 obj\n<< /Filter /FlateDecode >>\nstream\n")
	out.Write(deflated.Bytes())
	out.WriteString("\r\nendstream\nendobj\n%%EOF\n")
	return out.Bytes()
}

// =============================================================================
// EXTRACTION TESTS
// =============================================================================

func TestExtractText_PlainText(t *testing.T) {
	text, err := extractText(".md", []byte("# Title\n\nBody \xff text"))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody  text", text)
}

func TestExtractText_DOCX(t *testing.T) {
	data := buildDOCX(t, "Refunds are issued within 30 days.", "Contact support.")
	text, err := extractText(".docx", data)
	require.NoError(t, err)
	assert.Equal(t, "Refunds are issued within 30 days.\nContact support.\n", text)
}

func TestExtractText_DOCXInvalid(t *testing.T) {
	_, err := extractText(".docx", []byte("not a zip"))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = extractText(".docx", buf.Bytes())
	assert.ErrorContains(t, err, "document.xml")
}

func TestExtractText_PDFDeflatedStream(t *testing.T) {
	data := buildPDF(t, "BT /F1 12 Tf (Refund policy) Tj [(thirty) -250 (days)] TJ ET")
	text, err := extractText(".pdf", data)
	require.NoError(t, err)
	assert.Equal(t, "Refund policy thirtydays", text)
}

func TestExtractText_PDFFallback(t *testing.T) {
	data := []byte("%PDF\x00\x01Readable words here\x02\x03xy\x04")
	text, err := extractText(".pdf", data)
	require.NoError(t, err)
	assert.Contains(t, text, "Readable words here")
	assert.NotContains(t, text, "xy")
}

func TestAllowedExtension(t *testing.T) {
	for _, ext := range []string{".pdf", ".txt", ".md", ".docx"} {
		assert.True(t, allowedExtension(ext), ext)
	}
	for _, ext := range []string{".exe", ".PDF", "", ".doc"} {
		assert.False(t, allowedExtension(ext), ext)
	}
}

// =============================================================================
// CHUNKING TESTS
// =============================================================================

func TestChunkText(t *testing.T) {
	words := make([]string, 12)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, " ")

	tests := []struct {
		name          string
		size, overlap int
		want          []string
	}{
		{"overlapping", 5, 2, []string{"w0 w1 w2 w3 w4", "w3 w4 w5 w6 w7", "w6 w7 w8 w9 w10", "w9 w10 w11"}},
		{"no overlap", 6, 0, []string{"w0 w1 w2 w3 w4 w5", "w6 w7 w8 w9 w10 w11"}},
		{"single chunk", 50, 10, []string{text}},
		{"overlap too large", 4, 4, []string{"w0 w1 w2 w3", "w4 w5 w6 w7", "w8 w9 w10 w11"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunkText(text, tt.size, tt.overlap))
		})
	}

	assert.Empty(t, chunkText("   ", 5, 1))
	assert.Empty(t, chunkText(text, 0, 0))
}

// =============================================================================
// ANSWER TESTS
// =============================================================================

func TestComposeAnswer(t *testing.T) {
	chunks := []Chunk{
		{Filename: "policy.pdf", Index: 0, Content: "Shipping is free. Refunds are issued within 30 days of purchase."},
		{Filename: "faq.md", Index: 3, Content: "Our refund policy covers unused items."},
	}
	answer := composeAnswer("What is the refund policy?", chunks)

	assert.True(t, strings.HasPrefix(answer, "Based on your documents:"))
	assert.Contains(t, answer, "Our refund policy covers unused items. [Source 2 - faq.md]")
	assert.NotContains(t, answer, "Shipping is free.")
}

func TestComposeAnswer_NoChunks(t *testing.T) {
	assert.Equal(t, NoContextAnswer, composeAnswer("anything", nil))
}

func TestComposeAnswer_NoOverlapStillCites(t *testing.T) {
	answer := composeAnswer("zzz", []Chunk{{Filename: "a.txt", Content: "Unrelated text"}})
	assert.Contains(t, answer, "Unrelated text [Source 1 - a.txt]")
}
