// SPDX-License-Identifier: Apache-2.0
// Package document loads source files into plain text for ingestion.
package document

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jllopis/gnosis/pkg/errors"
)

// Document is a loaded source file's text plus provenance metadata.
type Document struct {
	FileName string
	Path     string
	Ext      string // lowercase, without dot
	Text     string
}

// Ext returns the lowercase extension of path without the leading dot.
func Ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Supported reports whether ext is in the allow-list.
func Supported(ext string, allowed []string) bool {
	for _, a := range allowed {
		if ext == strings.ToLower(strings.TrimPrefix(a, ".")) {
			return true
		}
	}
	return false
}

// Discover walks dir recursively and returns the paths of all files whose
// extension is in the allow-list, sorted for deterministic processing order.
func Discover(dir string, allowed []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.New(errors.CodeNotFound, "ingestion directory not found", err).
			WithContext("dir", dir)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.CodeInvalidInput, "ingestion path is not a directory", nil).
			WithContext("dir", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if Supported(Ext(path), allowed) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to walk ingestion directory", err).
			WithContext("dir", dir)
	}

	sort.Strings(paths)
	return paths, nil
}

// Load reads the file at path and extracts its plain text according to the
// file extension. Unsupported extensions return CodeUnsupportedFile.
func Load(path string) (*Document, error) {
	ext := Ext(path)

	var text string
	var err error
	switch ext {
	case "txt", "md":
		text, err = loadText(path)
	case "pdf":
		text, err = loadPDF(path)
	case "docx", "doc":
		text, err = loadDocx(path)
	default:
		return nil, errors.New(errors.CodeUnsupportedFile, "unsupported file extension", nil).
			WithContext("path", path).
			WithContext("ext", ext)
	}
	if err != nil {
		return nil, err
	}

	return &Document{
		FileName: filepath.Base(path),
		Path:     path,
		Ext:      ext,
		Text:     text,
	}, nil
}

func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(errors.CodeInternal, "failed to read file", err).
			WithContext("path", path)
	}
	return string(data), nil
}
