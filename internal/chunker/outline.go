package chunker

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// Symbol is a top-level definition found by the outliner.
type Symbol struct {
	Name      string
	Kind      string
	StartLine int
	EndLine   int
}

// Outliner lists the definitions in a source file using tree-sitter.
type Outliner struct {
	registry *Registry
}

// NewOutliner creates an outliner backed by the given registry.
func NewOutliner(r *Registry) *Outliner {
	return &Outliner{registry: r}
}

// Registry exposes the language registry.
func (o *Outliner) Registry() *Registry { return o.registry }

// Outline parses src and returns its definitions in source order. Files
// without a registered grammar yield nil and no error.
func (o *Outliner) Outline(ctx context.Context, path string, src []byte) ([]Symbol, error) {
	spec, lang := o.registry.Lookup(path)
	if spec == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", lang, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var caps []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var def *sitter.Node
		var name string
		for _, c := range m.Captures {
			switch q.CaptureNameForId(c.Index) {
			case "def":
				def = c.Node
			case "name":
				name = c.Node.Content(src)
			}
		}
		if def == nil {
			continue
		}
		caps = append(caps, capture{
			name:      name,
			kind:      def.Type(),
			startLine: int(def.StartPoint().Row) + 1,
			endLine:   int(def.EndPoint().Row) + 1,
			startByte: def.StartByte(),
			endByte:   def.EndByte(),
		})
	}

	caps = outermost(caps)
	symbols := make([]Symbol, len(caps))
	for i, c := range caps {
		symbols[i] = Symbol{Name: c.name, Kind: c.kind, StartLine: c.startLine, EndLine: c.endLine}
	}
	return symbols, nil
}

// outermost drops captures nested inside an earlier, larger capture.
func outermost(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	result := caps[:0:0]
	var lastEnd uint32
	for i, c := range caps {
		if i == 0 || c.startByte >= lastEnd {
			result = append(result, c)
			lastEnd = max(lastEnd, c.endByte)
		}
	}
	return result
}

type capture struct {
	name      string
	kind      string
	startLine int
	endLine   int
	startByte uint32
	endByte   uint32
}
