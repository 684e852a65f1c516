package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Format is the extraction variant selected for a file.
type Format string

const (
	FormatPDF       Format = "pdf"
	FormatDOCX      Format = "docx"
	FormatPlainText Format = "text"
	FormatImage     Format = "image"
)

var extensionFormats = map[string]Format{
	"pdf":  FormatPDF,
	"docx": FormatDOCX,
	"txt":  FormatPlainText,
	"png":  FormatImage,
	"jpg":  FormatImage,
	"jpeg": FormatImage,
	"bmp":  FormatImage,
	"tiff": FormatImage,
	"tif":  FormatImage,
}

// DefaultAllowedExtensions mirrors the recognised extension set.
var DefaultAllowedExtensions = []string{"pdf", "docx", "txt", "png", "jpg", "jpeg", "bmp", "tiff"}

// ExtensionOf returns the lower-cased text after the last dot, or "".
func ExtensionOf(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

func FormatForExtension(ext string) (Format, bool) {
	f, ok := extensionFormats[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return f, ok
}

// ExtensionPolicy is the configured allowed-extension set.
type ExtensionPolicy struct {
	allowed map[string]Format
}

func NewExtensionPolicy(extensions []string) (ExtensionPolicy, error) {
	if len(extensions) == 0 {
		extensions = DefaultAllowedExtensions
	}
	allowed := make(map[string]Format, len(extensions))
	for _, raw := range extensions {
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
		if ext == "" {
			continue
		}
		format, ok := FormatForExtension(ext)
		if !ok {
			return ExtensionPolicy{}, fmt.Errorf("allowed extension %q has no extraction strategy", ext)
		}
		allowed[ext] = format
	}
	if len(allowed) == 0 {
		return ExtensionPolicy{}, fmt.Errorf("allowed extension set is empty")
	}
	return ExtensionPolicy{allowed: allowed}, nil
}

// Validate rejects filenames whose extension is outside the allowed set.
func (p ExtensionPolicy) Validate(filename string) error {
	ext := ExtensionOf(filename)
	if _, ok := p.allowed[ext]; !ok {
		return WrapError(ErrValidation, "validate filename", &UnsupportedFormatError{Extension: ext})
	}
	return nil
}

func (p ExtensionPolicy) Extensions() []string {
	out := make([]string, 0, len(p.allowed))
	for ext := range p.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
