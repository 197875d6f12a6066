// SPDX-License-Identifier: Apache-2.0

package document

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"

	"github.com/jllopis/gnosis/pkg/errors"
)

// loadDocx extracts the text runs from a docx container's main document
// part. Legacy binary .doc files are not zip containers and are rejected
// as unsupported.
func loadDocx(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", errors.New(errors.CodeUnsupportedFile, "file is not a valid docx container", err).
			WithContext("path", path)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", errors.New(errors.CodeInternal, "failed to open docx document part", err).
				WithContext("path", path)
		}
		defer rc.Close()
		return extractDocxText(rc, path)
	}

	return "", errors.New(errors.CodeInvalidInput, "docx container has no document part", nil).
		WithContext("path", path)
}

// extractDocxText walks the WordprocessingML token stream, collecting the
// character data inside w:t runs. Paragraph ends become newlines.
func extractDocxText(r io.Reader, path string) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.New(errors.CodeInternal, "failed to parse docx xml", err).
				WithContext("path", path)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
