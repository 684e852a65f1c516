package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Invoice</w:t></w:r><w:r><w:t xml:space="preserve"> Number</w:t></w:r></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
    <w:p/>
    <w:p><w:r><w:t>Item</w:t><w:tab/><w:t>Design</w:t></w:r></w:p>
    <w:sectPr/>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestDOCXExtractJoinsBodyParagraphs(t *testing.T) {
	content := buildDOCX(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   testDocumentXML,
	})

	text, err := DOCXStrategy{}.Extract(context.Background(), content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "Invoice Number\n\nItem\tDesign"
	if text != want {
		t.Fatalf("Extract() = %q, want %q", text, want)
	}
}

func TestDOCXExtractFailures(t *testing.T) {
	cases := map[string][]byte{
		"not a zip":     []byte("plain bytes"),
		"missing part":  buildDOCX(t, map[string]string{"word/other.xml": "<x/>"}),
		"malformed xml": buildDOCX(t, map[string]string{"word/document.xml": "<w:document><w:body><w:p>"}),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DOCXStrategy{}.Extract(context.Background(), content)
			var extractionErr *domain.ExtractionError
			if !errors.As(err, &extractionErr) || extractionErr.Format != domain.FormatDOCX {
				t.Fatalf("expected ExtractionError{docx}, got %v", err)
			}
		})
	}
}
