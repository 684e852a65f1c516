package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const docxMainPart = "word/document.xml"

// DOCXStrategy joins body paragraphs in document order with newlines.
type DOCXStrategy struct{}

func (DOCXStrategy) Format() domain.Format { return domain.FormatDOCX }

func (DOCXStrategy) Extract(_ context.Context, content []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", domain.NewExtractionError(domain.FormatDOCX, fmt.Errorf("open archive: %w", err))
	}

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == docxMainPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", domain.NewExtractionError(domain.FormatDOCX, errors.New("missing "+docxMainPart))
	}

	rc, err := part.Open()
	if err != nil {
		return "", domain.NewExtractionError(domain.FormatDOCX, fmt.Errorf("open %s: %w", docxMainPart, err))
	}
	defer rc.Close()

	paragraphs, err := readBodyParagraphs(rc)
	if err != nil {
		return "", domain.NewExtractionError(domain.FormatDOCX, fmt.Errorf("parse %s: %w", docxMainPart, err))
	}
	return strings.Join(paragraphs, "\n"), nil
}

// readBodyParagraphs collects the text of w:p elements that are direct
// children of w:body. Table and text-box paragraphs are skipped.
func readBodyParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		stack          []string
		paragraphs     []string
		current        strings.Builder
		inParagraph    bool
		paragraphDepth int
		inText         bool
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			switch el.Name.Local {
			case "p":
				if parent == "body" && !inParagraph {
					inParagraph = true
					paragraphDepth = len(stack)
					current.Reset()
				}
			case "t":
				inText = inParagraph && parent == "r"
			case "tab":
				if inParagraph && parent == "r" {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inParagraph && parent == "r" {
					current.WriteByte('\n')
				}
			}
			stack = append(stack, el.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph && len(stack) == paragraphDepth {
					paragraphs = append(paragraphs, current.String())
					inParagraph = false
				}
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		}
	}
	return paragraphs, nil
}
