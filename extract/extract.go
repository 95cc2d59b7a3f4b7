// Package extract converts uploaded file bytes into plain text with
// page and word counts. It is plumbing in front of the retrieval
// pipeline: parse failures surface as errors, unsupported types
// degrade to an empty result.
package extract

import (
	"strings"
	"unicode/utf8"

	"docvault/types"
)

type Result struct {
	Text      string
	PageCount *int
	WordCount *int
}

type Extractor interface {
	Extract(data []byte, fileType types.DocumentType) (Result, error)
}

type FileExtractor struct{}

func New() *FileExtractor {
	return &FileExtractor{}
}

func (e *FileExtractor) Extract(data []byte, fileType types.DocumentType) (Result, error) {
	var res Result
	var err error

	switch fileType {
	case types.TypePDF:
		var pages int
		res.Text, pages, err = extractPDF(data)
		if err == nil {
			res.PageCount = &pages
		}
	case types.TypeDOCX, types.TypeDOC:
		res.Text, err = extractDOCX(data)
	case types.TypeTXT:
		res.Text = extractTXT(data)
	default:
		// No extractor for this type; the document stays usable
		// without text.
		return Result{}, nil
	}

	if err != nil {
		return Result{}, err
	}
	if res.Text != "" {
		wc := len(strings.Fields(res.Text))
		res.WordCount = &wc
	}
	return res, nil
}

// extractTXT decodes the bytes as UTF-8, falling back to Latin-1 for
// legacy files.
func extractTXT(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
