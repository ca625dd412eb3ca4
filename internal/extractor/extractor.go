// Package extractor statically scans Python source trees for HTTP call
// sites using tree-sitter.
package extractor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

var _ repository.CallExtractor = (*Extractor)(nil)

// unknownService labels calls found in files at the scanned root, which
// have no directory segment to derive a caller service from.
const unknownService = "unknown"

// denyDirs are pruned from the walk: version-control metadata, dependency
// caches and virtual environments contribute noise, not call sites.
var denyDirs = map[string]struct{}{
	".git":         {},
	"__pycache__":  {},
	".venv":        {},
	"venv":         {},
	"node_modules": {},
}

var httpVerbs = map[string]struct{}{
	"get":    {},
	"post":   {},
	"put":    {},
	"delete": {},
	"patch":  {},
}

// wellKnownClients are HTTP client modules matched by name alone; calls
// through them do not need a URL-shaped argument to be recorded.
var wellKnownClients = map[string]struct{}{
	"requests": {},
	"httpx":    {},
}

// rawCall is a per-file match before path metadata is attached.
type rawCall struct {
	method string
	url    string
	line   int
}

// Extractor scans a source tree for statically-determinable HTTP calls.
type Extractor struct {
	logger *zap.Logger
}

// New creates an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract walks the tree rooted at root and returns one ExtractedCall per
// detected HTTP call site. Files that fail to parse are skipped with a
// logged diagnostic; the walk itself never aborts on a bad file. Output
// order is deterministic for a fixed input tree (lexical walk order).
func (e *Extractor) Extract(root string) ([]domain.ExtractedCall, error) {
	// Parsers are not safe for concurrent use; one per walk.
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	var calls []domain.ExtractedCall

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if _, denied := denyDirs[d.Name()]; denied {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}

		source, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("Skipping unreadable file", zap.String("file", path), zap.Error(err))
			return nil
		}

		fileCalls, err := extractFromSource(parser, source)
		if err != nil {
			e.logger.Warn("Skipping unparsable file", zap.String("file", path), zap.Error(err))
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("extractor: relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		service := unknownService
		if idx := strings.IndexByte(rel, '/'); idx > 0 {
			service = rel[:idx]
		}

		for _, rc := range fileCalls {
			calls = append(calls, domain.ExtractedCall{
				ServiceName: service,
				Method:      rc.method,
				URL:         rc.url,
				FilePath:    rel,
				LineNumber:  rc.line,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extractor: walk %s: %w", root, err)
	}

	return calls, nil
}

// extractFromSource parses one file and visits every call expression.
func extractFromSource(parser *sitter.Parser, source []byte) ([]rawCall, error) {
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var calls []rawCall
	visit(tree.RootNode(), source, &calls)
	return calls, nil
}

func visit(node *sitter.Node, source []byte, calls *[]rawCall) {
	if node.Type() == "call" {
		if rc, ok := matchCall(node, source); ok {
			*calls = append(*calls, rc)
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		visit(node.NamedChild(i), source, calls)
	}
}

// matchCall applies the three extraction patterns, first match wins:
//  1. requests.<verb>("literal", ...)
//  2. httpx.<verb>("literal", ...)
//  3. <anything>.<verb>("literal", ...) where the literal looks like a URL
//     (scheme prefix or path separator), which keeps client.get(...) while
//     rejecting unrelated methods that happen to be named get/post.
func matchCall(node *sitter.Node, source []byte) (rawCall, bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return rawCall{}, false
	}

	attr := fn.ChildByFieldName("attribute")
	if attr == nil {
		return rawCall{}, false
	}
	method := nodeText(attr, source)
	if _, ok := httpVerbs[method]; !ok {
		return rawCall{}, false
	}

	urlNode := firstPositionalArg(node)
	if urlNode == nil || urlNode.Type() != "string" {
		return rawCall{}, false
	}
	url, ok := pythonStringLiteral(nodeText(urlNode, source))
	if !ok {
		return rawCall{}, false
	}

	line := int(node.StartPoint().Row) + 1

	obj := fn.ChildByFieldName("object")
	if obj != nil && obj.Type() == "identifier" {
		if _, known := wellKnownClients[nodeText(obj, source)]; known {
			return rawCall{method: method, url: url, line: line}, true
		}
	}

	if strings.HasPrefix(url, "http") || strings.Contains(url, "/") {
		return rawCall{method: method, url: url, line: line}, true
	}
	return rawCall{}, false
}

// firstPositionalArg returns the first non-keyword argument of a call.
func firstPositionalArg(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == "keyword_argument" {
			continue
		}
		return child
	}
	return nil
}

// pythonStringLiteral decodes a Python string token into its literal
// value. f-strings and anything with interpolation are rejected: only
// statically-determinable URLs are extracted.
func pythonStringLiteral(raw string) (string, bool) {
	i := 0
	for i < len(raw) && raw[i] != '\'' && raw[i] != '"' {
		switch raw[i] {
		case 'r', 'R', 'b', 'B', 'u', 'U':
			i++
		default:
			// 'f' prefix or something that is not a string token at all.
			return "", false
		}
	}
	s := raw[i:]
	for _, quote := range []string{`"""`, "'''", `"`, `'`} {
		if strings.HasPrefix(s, quote) && strings.HasSuffix(s, quote) && len(s) >= 2*len(quote) {
			return s[len(quote) : len(s)-len(quote)], true
		}
	}
	return "", false
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
