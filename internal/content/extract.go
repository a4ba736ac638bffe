// Package content turns uploaded documents into plain text for question
// generation.
package content

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
)

// Extract returns the plain text of an uploaded .pdf or .docx document.
// Any other extension (or a nil reader) yields an empty string with no
// error; unsupported uploads are a silent fallback, not a failure. Pages or
// paragraphs with no extractable text are skipped.
func Extract(filename string, r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(r)
	case ".docx":
		return extractDocx(r)
	default:
		return "", nil
	}
}

func extractPDF(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages that yield nothing are treated as empty, not fatal.
			continue
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func extractDocx(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			paragraphs = append(paragraphs, p.String())
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}
