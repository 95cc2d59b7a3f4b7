package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchParamsValidate(t *testing.T) {
	params := &SearchParams{Query: "contract termination clauses"}
	assert.Empty(t, params.Validate())

	params = &SearchParams{}
	errs := params.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs, "Query")

	params = &SearchParams{Query: strings.Repeat("q", 1001)}
	assert.Contains(t, params.Validate(), "Query")

	params = &SearchParams{Query: "ok", Limit: 51}
	assert.Contains(t, params.Validate(), "Limit")

	th := 1.5
	params = &SearchParams{Query: "ok", SimilarityThreshold: &th}
	assert.Contains(t, params.Validate(), "SimilarityThreshold")
}

func TestSearchParamsNormalize(t *testing.T) {
	params := &SearchParams{Query: "anything"}
	params.Normalize()
	assert.Equal(t, DefaultSearchLimit, params.Limit)
	require.NotNil(t, params.SimilarityThreshold)
	assert.Equal(t, DefaultSearchThreshold, *params.SimilarityThreshold)

	th := 0.0
	params = &SearchParams{Query: "anything", Limit: 25, SimilarityThreshold: &th}
	params.Normalize()
	assert.Equal(t, 25, params.Limit)
	assert.Equal(t, 0.0, *params.SimilarityThreshold, "explicit zero threshold survives")
}

func TestUpdateDocumentParamsEmpty(t *testing.T) {
	params := &UpdateDocumentParams{}
	assert.True(t, params.Empty())

	title := "Q3 report"
	params.Title = &title
	assert.False(t, params.Empty())
}

func TestDocumentTypeFromFilename(t *testing.T) {
	cases := map[string]DocumentType{
		"report.pdf":      TypePDF,
		"REPORT.PDF":      TypePDF,
		"notes.docx":      TypeDOCX,
		"legacy.doc":      TypeDOC,
		"readme.txt":      TypeTXT,
		"archive.tar.gz":  TypeOther,
		"noextension":     TypeOther,
		"weird.pdf.exe":   TypeOther,
		"nested/path.txt": TypeTXT,
	}
	for name, want := range cases {
		assert.Equal(t, want, DocumentTypeFromFilename(name), name)
	}
}

func TestDocumentDisplayTitle(t *testing.T) {
	doc := &Document{OriginalFilename: "scan001.pdf"}
	assert.Equal(t, "scan001.pdf", doc.DisplayTitle())

	doc.Title = "Lease agreement"
	assert.Equal(t, "Lease agreement", doc.DisplayTitle())
}
