package pdfutil

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// IsPDF reports whether the bytes look like a PDF document. Portals
// answer postbacks with an HTML error page under the same content type
// when the session went stale, so the magic bytes are the only reliable
// signal before persistence.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// ExtractLines returns the plain text of the document as one string per
// visual row, top of page first.
func ExtractLines(data []byte) (lines []string, err error) {
	// the pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	for pageNo := 1; pageNo <= reader.NumPage(); pageNo++ {
		page := reader.Page(pageNo)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("parse pdf page %d: %w", pageNo, err)
		}
		for _, row := range rows {
			var b strings.Builder
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			line := strings.TrimSpace(b.String())
			if line == "" {
				continue
			}
			lines = append(lines, line)
		}
	}
	return lines, nil
}
