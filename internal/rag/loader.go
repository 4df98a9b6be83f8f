package rag

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// loaderFunc reads one file and returns its plain-text content.
type loaderFunc func(path string) (string, error)

var loaderMap = map[string]loaderFunc{
	".md":  loadMarkdown,
	".txt": loadText,
	".pdf": loadPDF,
}

// UnsupportedFileTypeError rejects an ingestion request before any I/O side
// effect happens.
type UnsupportedFileTypeError struct {
	Ext string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %q (supported: %s)", e.Ext, strings.Join(SupportedExtensions(), ", "))
}

// SupportedExtensions lists the ingestable file extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(loaderMap))
	for ext := range loaderMap {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupportedFile reports whether path has an ingestable extension.
func IsSupportedFile(path string) bool {
	_, ok := loaderMap[strings.ToLower(filepath.Ext(path))]
	return ok
}

func loadFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := loaderMap[ext]
	if !ok {
		return "", &UnsupportedFileTypeError{Ext: ext}
	}
	return loader(path)
}

func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// loadMarkdown parses the file with goldmark and walks the AST collecting
// text segments, so markup syntax never ends up in the index.
func loadMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	md := goldmark.New()
	reader := text.NewReader(data)
	doc := md.Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if block := extractText(node, data); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			for i := 0; i < v.Lines().Len(); i++ {
				line := v.Lines().At(i)
				sb.Write(line.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func loadPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", err
	}
	return buf.String(), nil
}
