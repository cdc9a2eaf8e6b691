package paragraphs

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Service segments readable markdown into stable paragraph records for the
// external embeddings subsystem. Segmentation walks the markdown AST so
// headings, list items and fenced code split identically run over run; the
// paragraph id is derived from (expression, index, text), making the whole
// operation deterministic.
type Service struct {
	store  interfaces.StorageManager
	parser goldmark.Markdown
	logger arbor.ILogger
}

// NewService creates the paragrapher.
func NewService(store interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		store:  store,
		parser: goldmark.New(),
		logger: logger,
	}
}

// Segment splits readable markdown into paragraph texts. Pure function of
// its input.
func (s *Service) Segment(readable string) []string {
	source := []byte(readable)
	root := s.parser.Parser().Parse(text.NewReader(source))

	var segments []string
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		for _, segment := range blockTexts(node, source) {
			trimmed := strings.TrimSpace(segment)
			if trimmed != "" {
				segments = append(segments, trimmed)
			}
		}
	}
	return segments
}

// Refresh replaces the stored paragraphs of an expression with the segments
// of its current readable text.
func (s *Service) Refresh(ctx context.Context, expr *models.Expression) (int, error) {
	segments := s.Segment(expr.Readable)

	paragraphs := make([]*models.Paragraph, len(segments))
	for i, segment := range segments {
		paragraphs[i] = &models.Paragraph{
			ID:           models.ParagraphID(expr.ID, i, segment),
			ExpressionID: expr.ID,
			LandID:       expr.LandID,
			Index:        i,
			Text:         segment,
			CreatedAt:    expr.UpdatedAt,
		}
	}

	if err := s.store.Paragraphs().ReplaceParagraphs(ctx, expr.ID, paragraphs); err != nil {
		return 0, err
	}
	return len(paragraphs), nil
}

// blockTexts renders one top-level block to text segments. Lists yield one
// segment per item; everything else yields a single segment.
func blockTexts(node ast.Node, source []byte) []string {
	switch typed := node.(type) {
	case *ast.List:
		var items []string
		for item := typed.FirstChild(); item != nil; item = item.NextSibling() {
			items = append(items, nodeText(item, source))
		}
		return items
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return []string{rawLines(node, source)}
	default:
		return []string{nodeText(node, source)}
	}
}

// nodeText concatenates the literal text of a node's inline tree.
func nodeText(node ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch typed := n.(type) {
		case *ast.Text:
			b.Write(typed.Segment.Value(source))
			if typed.SoftLineBreak() || typed.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(typed.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// rawLines returns the verbatim lines of a code block.
func rawLines(node ast.Node, source []byte) string {
	var b strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}
