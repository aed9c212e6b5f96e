package splitter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// construct is one semantic definition captured by a tree-sitter query.
type construct struct {
	Kind      string // function, method, class, struct, interface, enum, trait, impl, module
	Name      string
	Content   string
	StartLine int // 1-based
	EndLine   int
	Parents   []string // enclosing class-like names, outermost first
	Docstring string
}

// runQuery parses source with the language grammar and collects semantic
// constructs plus import statements.
func runQuery(ctx context.Context, lang string, source []byte) ([]construct, []string, error) {
	grammar := astLanguage(lang)
	if grammar == nil {
		return nil, nil, fmt.Errorf("no grammar for language %s", lang)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s source: %w", lang, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() && root.NamedChildCount() == 0 {
		return nil, nil, fmt.Errorf("unparsable %s source", lang)
	}

	query, err := sitter.NewQuery([]byte(queryFor(lang)), grammar)
	if err != nil {
		return nil, nil, fmt.Errorf("compile %s query: %w", lang, err)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, root)

	var constructs []construct
	var imports []string
	seen := make(map[string]bool) // start:end dedup across overlapping patterns

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}

		var defNode *sitter.Node
		var kind, name string
		for _, cap := range match.Captures {
			capName := query.CaptureNameForId(cap.Index)
			switch {
			case strings.HasPrefix(capName, "definition."):
				defNode = cap.Node
				kind = strings.TrimPrefix(capName, "definition.")
			case capName == "name":
				name = cap.Node.Content(source)
			}
		}
		if defNode == nil {
			continue
		}

		if kind == "import" {
			imports = append(imports, defNode.Content(source))
			continue
		}

		key := fmt.Sprintf("%d:%d", defNode.StartByte(), defNode.EndByte())
		if seen[key] {
			continue
		}
		seen[key] = true

		constructs = append(constructs, construct{
			Kind:      kind,
			Name:      name,
			Content:   defNode.Content(source),
			StartLine: int(defNode.StartPoint().Row) + 1,
			EndLine:   int(defNode.EndPoint().Row) + 1,
			Parents:   parentContext(defNode, lang, source),
			Docstring: precedingComment(defNode, source),
		})
	}

	sort.Slice(constructs, func(i, j int) bool {
		return constructs[i].StartLine < constructs[j].StartLine
	})
	return constructs, imports, nil
}

// parentContext walks up the tree collecting enclosing class-like names,
// outermost first.
func parentContext(node *sitter.Node, lang string, source []byte) []string {
	classTypes := classNodeTypes[lang]
	var parents []string
	for n := node.Parent(); n != nil; n = n.Parent() {
		if !classTypes[n.Type()] {
			continue
		}
		name := nodeName(n, source)
		if name != "" {
			parents = append([]string{name}, parents...)
		}
	}
	return parents
}

// nodeName extracts a node's declared name, searching one level of named
// children when the grammar nests the identifier (e.g. Go type_spec).
func nodeName(node *sitter.Node, source []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(source)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if n := child.ChildByFieldName("name"); n != nil {
			return n.Content(source)
		}
	}
	return ""
}

// precedingComment returns the comment block immediately preceding a node,
// used as the docstring for languages that document above the definition.
func precedingComment(node *sitter.Node, source []byte) string {
	var lines []string
	current := node
	for prev := current.PrevNamedSibling(); prev != nil; prev = current.PrevNamedSibling() {
		if prev.Type() != "comment" && prev.Type() != "line_comment" && prev.Type() != "block_comment" {
			break
		}
		// Only adjacent comments count.
		if int(current.StartPoint().Row)-int(prev.EndPoint().Row) > 1 {
			break
		}
		lines = append([]string{prev.Content(source)}, lines...)
		current = prev
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
