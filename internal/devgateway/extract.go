// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devgateway

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// AllowedExtensions are the upload types the gateway accepts.
var AllowedExtensions = []string{".pdf", ".txt", ".md", ".docx"}

func allowedExtension(ext string) bool {
	for _, a := range AllowedExtensions {
		if a == ext {
			return true
		}
	}
	return false
}

// =============================================================================
// TEXT EXTRACTION
// =============================================================================

// extractText returns the plain text of an uploaded file.
func extractText(ext string, data []byte) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(data), nil
	case ".docx":
		return extractDOCX(data)
	default:
		return strings.ToValidUTF8(string(data), ""), nil
	}
}

var (
	pdfStream = regexp.MustCompile(`(?s)stream\r?\n(.*?)\r?\nendstream`)
	pdfString = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)\s*Tj|\[((?:[^\]])*)\]\s*TJ`)
	pdfInner  = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
)

// extractPDF is a best-effort extractor: it inflates content streams and
// collects the operands of text-showing operators. Files it cannot read
// yield runs of printable characters instead.
func extractPDF(data []byte) string {
	var b strings.Builder
	for _, m := range pdfStream.FindAllSubmatch(data, -1) {
		content := m[1]
		if r, err := zlib.NewReader(bytes.NewReader(content)); err == nil {
			if inflated, err := io.ReadAll(r); err == nil {
				content = inflated
			}
			r.Close()
		}
		for _, op := range pdfString.FindAllSubmatch(content, -1) {
			if op[1] != nil {
				b.WriteString(unescapePDF(op[1]))
			} else {
				for _, s := range pdfInner.FindAllSubmatch(op[2], -1) {
					b.WriteString(unescapePDF(s[1]))
				}
			}
			b.WriteByte(' ')
		}
	}
	if text := strings.TrimSpace(b.String()); text != "" {
		return text
	}
	return printableRuns(data, 4)
}

func unescapePDF(s []byte) string {
	r := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, "\n", `\r`, " ", `\t`, " ")
	return r.Replace(string(s))
}

// printableRuns keeps sequences of at least minLen printable characters.
func printableRuns(data []byte, minLen int) string {
	var out []string
	var run []rune
	flush := func() {
		if len(run) >= minLen {
			out = append(out, string(run))
		}
		run = run[:0]
	}
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r != utf8.RuneError && (unicode.IsPrint(r) || r == ' ') {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return strings.Join(out, " ")
}

// extractDOCX reads the paragraphs of word/document.xml.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return docxParagraphs(rc)
	}
	return "", fmt.Errorf("read docx: word/document.xml missing")
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inText = t.Name.Local == "t"
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
}

// =============================================================================
// CHUNKING
// =============================================================================

// chunkText splits text into chunks of size words, each overlapping the
// previous one by overlap words.
func chunkText(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < len(words); start += size - overlap {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
