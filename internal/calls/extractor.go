// Package calls extracts call sites (direct calls, method calls,
// constructors, imports) from source files using compiled tree-sitter
// pattern queries. Only the call-graph languages are covered; other
// languages yield an empty result.
package calls

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Aman-CERP/codeindex/internal/chunk"
	"github.com/Aman-CERP/codeindex/internal/errors"
)

// CallType classifies a call site.
type CallType string

const (
	CallTypeCall        CallType = "Call"
	CallTypeMethodCall  CallType = "MethodCall"
	CallTypeConstructor CallType = "Constructor"
	CallTypeImport      CallType = "Import"
)

// CallSite is one extracted call location.
type CallSite struct {
	CalleeName string   `json:"callee_name"`
	Line       uint32   `json:"line"`   // 1-based
	Column     uint32   `json:"column"` // 0-based
	Type       CallType `json:"call_type"`
}

// memberAccessKinds are the parent node kinds that turn a direct call
// capture into a method call, per language.
var memberAccessKinds = map[chunk.Language]map[string]bool{
	chunk.LangTypeScript: {"member_expression": true}, chunk.LangTypeScriptTsx: {"member_expression": true},
	chunk.LangJavaScript: {"member_expression": true}, chunk.LangJavaScriptJsx: {"member_expression": true},
	chunk.LangPython: {"attribute": true},
	chunk.LangRust:   {"field_expression": true},
	chunk.LangGo:     {"selector_expression": true},
}

func querySource(language chunk.Language) (string, bool) {
	switch language {
	case chunk.LangTypeScript, chunk.LangTypeScriptTsx, chunk.LangJavaScript, chunk.LangJavaScriptJsx:
		return typescriptQuery, true
	case chunk.LangPython:
		return pythonQuery, true
	case chunk.LangRust:
		return rustQuery, true
	case chunk.LangGo:
		return goQuery, true
	default:
		return "", false
	}
}

// Extract runs the language's call query over content and returns the
// call sites found. Languages without a query return an empty list.
func Extract(ctx context.Context, content, languageName string) ([]CallSite, error) {
	language := chunk.LanguageFromName(languageName)

	source, ok := querySource(language)
	if !ok {
		return nil, nil
	}

	grammar, ok := chunk.Grammar(language)
	if !ok {
		return nil, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	text := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, text)
	if err != nil {
		return nil, errors.New(errors.ErrCodeParseFailed, "parse failed", err)
	}
	defer tree.Close()

	query, err := sitter.NewQuery([]byte(source), grammar)
	if err != nil {
		return nil, errors.New(errors.ErrCodeParseFailed, "failed to compile call query", err)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, tree.RootNode())

	members := memberAccessKinds[language]
	var sites []CallSite

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}

		var (
			calleeName string
			calleeNode *sitter.Node
			callType   CallType
			line, col  uint32
			havePos    bool
		)

		for _, capture := range match.Captures {
			node := capture.Node
			switch query.CaptureNameForId(capture.Index) {
			case "callee.name":
				calleeName = node.Content(text)
				calleeNode = node
				if !havePos {
					line = node.StartPoint().Row + 1
					col = node.StartPoint().Column
					havePos = true
				}
			case "call":
				if callType == "" {
					callType = CallTypeCall
				}
			case "constructor":
				callType = CallTypeConstructor
			case "import.name", "import.default", "import.namespace":
				calleeName = node.Content(text)
				callType = CallTypeImport
				line = node.StartPoint().Row + 1
				col = node.StartPoint().Column
				havePos = true
			}
		}

		if calleeName == "" || callType == "" || !havePos {
			continue
		}

		if callType == CallTypeCall && calleeNode != nil {
			if parent := calleeNode.Parent(); parent != nil && members[parent.Type()] {
				callType = CallTypeMethodCall
			}
		}

		sites = append(sites, CallSite{
			CalleeName: calleeName,
			Line:       line,
			Column:     col,
			Type:       callType,
		})
	}

	return sites, nil
}
