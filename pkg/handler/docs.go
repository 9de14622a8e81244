package handler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	docsDir   = "docs"
	docsIndex = "docs/index.json"
)

// DocsIndex maps every markdown file under docs/ to its first level-1
// heading and writes the mapping to docs/index.json.
type DocsIndex struct {
	sb *sandbox.Sandbox
	md goldmark.Markdown
}

func NewDocsIndex(sb *sandbox.Sandbox) *DocsIndex {
	return &DocsIndex{sb: sb, md: goldmark.New()}
}

func (h *DocsIndex) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	root, info, err := h.sb.Stat(docsDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, taskerr.NotFound("%s is not a directory", docsDir)
	}

	index := make(map[string]string)
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		src, err := h.sb.ReadFile(path.Join(docsDir, rel))
		if err != nil {
			return err
		}
		if title, ok := h.firstH1(src); ok {
			index[rel] = title
		}
		return nil
	})
	if walkErr != nil {
		var typed *taskerr.Error
		if errors.As(walkErr, &typed) {
			return nil, walkErr
		}
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, walkErr, "cannot walk %s", docsDir)
	}

	data, err := json.MarshalIndent(index, "", "    ")
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot encode index")
	}
	data = append(data, '\n')
	if _, err := h.sb.WriteFile(docsIndex, data); err != nil {
		return nil, err
	}
	return &task.Result{
		Detail: fmt.Sprintf("%d documents indexed", len(index)),
		Output: docsIndex,
	}, nil
}

// firstH1 returns the plain text of the first level-1 heading, ATX or setext.
func (h *DocsIndex) firstH1(src []byte) (string, bool) {
	doc := h.md.Parser().Parse(text.NewReader(src))

	var title string
	found := false
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok && heading.Level == 1 {
			var sb strings.Builder
			inlineText(&sb, heading, src)
			title = strings.TrimSpace(sb.String())
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title, found
}

// inlineText collects the literal text under n, dropping markup.
func inlineText(sb *strings.Builder, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.AutoLink:
			sb.Write(node.Label(src))
		case *ast.RawHTML:
			// markup only
		default:
			inlineText(sb, c, src)
		}
	}
}
