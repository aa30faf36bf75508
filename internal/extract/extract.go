package extract

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	apperr "github.com/botdock/botdock/internal/pkg/errors"
)

// Extractor converts raw uploaded bytes into a single plain-text string.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract decodes data according to the declared content type, falling back
// to the file extension when the type is empty or generic. Unrecognized
// formats fail with ErrUnsupportedFormat; parse failures with ErrExtraction.
// Both are terminal for the document.
func (e *Extractor) Extract(data []byte, contentType string, fileName string) (string, error) {
	switch detectFormat(contentType, fileName) {
	case formatPDF:
		return extractPDF(data)
	case formatMarkdown:
		return extractMarkdown([]byte(decodeText(data))), nil
	case formatText:
		return decodeText(data), nil
	default:
		return "", fmt.Errorf("%w: content type %q, file %q", apperr.ErrUnsupportedFormat, contentType, fileName)
	}
}

type format int

const (
	formatUnknown format = iota
	formatPDF
	formatText
	formatMarkdown
)

func detectFormat(contentType string, fileName string) format {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	switch ct {
	case "application/pdf":
		return formatPDF
	case "text/markdown":
		return formatMarkdown
	case "text/plain", "text/csv", "application/csv":
		return formatText
	}
	switch strings.ToLower(path.Ext(fileName)) {
	case ".pdf":
		return formatPDF
	case ".md", ".markdown":
		return formatMarkdown
	case ".txt", ".csv":
		return formatText
	}
	return formatUnknown
}

// decodeText prefers UTF-8 but never aborts: invalid sequences are coerced
// to replacement runes instead of failing the document.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return string(bytes.ToValidUTF8(data, []byte("�")))
}

// extractMarkdown strips markdown syntax by walking the parsed AST and
// keeping only text content, one top-level block per paragraph. Fenced code
// blocks keep their raw lines. The blank-line separators line up with the
// chunker's paragraph splitting.
func extractMarkdown(data []byte) string {
	md := goldmark.New()
	reader := gmtext.NewReader(data)
	doc := md.Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		var block string
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			block = codeBlockText(n, reader.Source())
		default:
			block = nodeText(node, reader.Source())
		}
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func codeBlockText(n *ast.FencedCodeBlock, source []byte) string {
	var sb strings.Builder
	for i := 0; i < n.Lines().Len(); i++ {
		line := n.Lines().At(i)
		sb.Write(line.Value(source))
	}
	return strings.TrimSpace(sb.String())
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := node.(*ast.Text); ok {
				sb.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		}
		// keep list items and nested paragraphs on separate lines
		if node.Type() == ast.TypeBlock {
			if s := sb.String(); s != "" && !strings.HasSuffix(s, "\n") {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs; treat that the same
	// as a parse error.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", apperr.ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrExtraction, err)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrExtraction, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrExtraction, err)
	}
	return buf.String(), nil
}
