package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Supported extensions, lower case without the dot.
const (
	PDF  = "pdf"
	DOCX = "docx"
	DOC  = "doc"
	TXT  = "txt"
)

var ErrNoText = errors.New("no text could be extracted from the document")

// UnsupportedExtensionError is returned for any extension outside
// pdf, docx, doc and txt.
type UnsupportedExtensionError struct {
	Extension string
}

func (e *UnsupportedExtensionError) Error() string {
	if e.Extension == "" {
		return "unsupported file type: file has no extension (use pdf, docx, doc or txt)"
	}
	return fmt.Sprintf("unsupported file type %q (use pdf, docx, doc or txt)", e.Extension)
}

// Result mirrors what the upload form expects back.
type Result struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExtensionOf returns the lower-case extension of filename without the dot.
func ExtensionOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Extract never returns an error: failures are reported in the Result.
func Extract(ext string, data []byte) Result {
	text, err := Text(ext, data)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true, Text: text}
}

// Text extracts plain text from data according to ext.
func Text(ext string, data []byte) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))

	var (
		text string
		err  error
	)
	switch ext {
	case PDF:
		text, err = pdfText(data)
	case DOCX:
		text, err = docxText(data)
	case DOC:
		text, err = docText(data)
	case TXT:
		text = plainText(data)
	default:
		return "", &UnsupportedExtensionError{Extension: ext}
	}
	if err != nil {
		return "", err
	}

	text = normalize(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func plainText(data []byte) string {
	s := string(data)
	s = strings.TrimPrefix(s, "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

// normalize unifies line endings, trims trailing spaces per line and
// collapses runs of blank lines.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			line = ""
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
