// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jllopis/gnosis/pkg/errors"
)

// loadPDF extracts the plain text of every readable page, joined by blank
// lines. Pages that cannot be parsed are skipped rather than failing the
// whole document.
func loadPDF(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(errors.CodeInternal, "failed to read pdf file", err).
			WithContext("path", path)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.New(errors.CodeInternal, "failed to parse pdf", err).
			WithContext("path", path)
	}

	var content strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unparseable pages
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(text)
	}

	return content.String(), nil
}
