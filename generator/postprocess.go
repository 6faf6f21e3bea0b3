package generator

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var ideaPrefix = regexp.MustCompile(`(?i)\bidea\s*\d+\s*[:.)]`)

// PostProcess validates a completion and splits it into individual ideas.
// The raw text is kept untouched; the ideas come from a markdown-free copy.
func PostProcess(raw string) (Suggestions, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Suggestions{}, errors.New("model returned empty suggestions")
	}
	return Suggestions{
		Raw:   raw,
		Ideas: splitIdeas(plainText(trimmed)),
	}, nil
}

// plainText drops markdown markup (emphasis, headings, list markers) that
// models add despite being told not to. Block and line breaks become newlines.
func plainText(md string) string {
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindList {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// splitIdeas cuts text at every "Idea N:" marker. Without markers every
// non-empty line counts as one idea.
func splitIdeas(s string) []string {
	locs := ideaPrefix.FindAllStringIndex(s, -1)
	var ideas []string
	if len(locs) == 0 {
		for _, line := range strings.Split(s, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				ideas = append(ideas, line)
			}
		}
		return ideas
	}
	for i, loc := range locs {
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		idea := strings.Join(strings.Fields(s[loc[1]:end]), " ")
		if idea != "" {
			ideas = append(ideas, idea)
		}
	}
	return ideas
}
