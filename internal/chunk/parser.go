package chunk

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// ParseFile splits a single file into chunks. Files whose language has a
// grammar get the semantic tree walk; everything else (and files where
// the walk finds no semantic nodes) gets line-window chunking.
func ParseFile(ctx context.Context, filePath, content string) ([]CodeChunk, error) {
	language := LanguageFromPath(filePath)

	grammar, ok := Grammar(language)
	if !ok {
		return chunkByLines(content, language), nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	source := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.New(errors.ErrCodeParseFailed, "failed to parse "+filePath, err)
	}
	if tree == nil {
		return nil, errors.New(errors.ErrCodeParseFailed, "failed to parse "+filePath, nil)
	}
	defer tree.Close()

	return extractChunks(tree, source, language), nil
}

func extractChunks(tree *sitter.Tree, source []byte, language Language) []CodeChunk {
	var chunks []CodeChunk
	root := tree.RootNode()

	if isSemanticKind(root.Type(), language) {
		emitSemanticNode(root, source, language, &chunks)
	} else {
		walkSemanticNodes(root, source, language, &chunks)
	}

	if len(chunks) == 0 {
		return chunkByLines(string(source), language)
	}

	mergeSmallChunks(&chunks)
	return chunks
}

// walkSemanticNodes descends depth-first. Semantic nodes are emitted and
// not descended into, so nested constructs stay part of the outer chunk.
func walkSemanticNodes(node *sitter.Node, source []byte, language Language, chunks *[]CodeChunk) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if isSemanticKind(child.Type(), language) {
			emitSemanticNode(child, source, language, chunks)
		} else {
			walkSemanticNodes(child, source, language, chunks)
		}
	}
}

func emitSemanticNode(node *sitter.Node, source []byte, language Language, chunks *[]CodeChunk) {
	startByte := node.StartByte()
	endByte := node.EndByte()

	commentStart, hasComment := findLeadingComment(node, language)
	if hasComment {
		startByte = commentStart
	}

	content := string(source[startByte:endByte])
	if len(content) < MinChunkSize {
		return
	}

	startLine := node.StartPoint().Row + 1
	if hasComment {
		startLine = uint32(strings.Count(string(source[:startByte]), "\n")) + 1
	}

	chunk := CodeChunk{
		Content:   content,
		StartLine: startLine,
		EndLine:   node.EndPoint().Row + 1,
		ChunkType: node.Type(),
		Name:      extractName(node, source),
		Language:  language.String(),
	}

	if len(content) <= MaxChunkSize {
		*chunks = append(*chunks, chunk)
	} else {
		splitLargeChunk(chunk, chunks)
	}
}

// findLeadingComment walks backwards through immediate previous siblings
// while each is a comment node, returning the start byte of the first one.
func findLeadingComment(node *sitter.Node, language Language) (uint32, bool) {
	var start uint32
	found := false

	for prev := node.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if !isCommentKind(prev.Type(), language) {
			break
		}
		start = prev.StartByte()
		found = true
	}

	return start, found
}

// extractName scans direct children for the first identifier-like node.
func extractName(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "identifier", "property_identifier", "type_identifier", "name":
			return string(source[child.StartByte():child.EndByte()])
		}
	}
	return ""
}

// splitLargeChunk windows an oversized chunk into TargetChunkSize/40-line
// sub-chunks with OverlapLines of overlap. Sub-chunks inherit type, name
// and language; line numbers are recomputed from the original start.
func splitLargeChunk(chunk CodeChunk, chunks *[]CodeChunk) {
	lines := splitLines(chunk.Content)
	totalLines := len(lines)

	if totalLines <= 1 {
		*chunks = append(*chunks, chunk)
		return
	}

	linesPerChunk := TargetChunkSize / 40
	stepSize := linesPerChunk
	if linesPerChunk > OverlapLines {
		stepSize = linesPerChunk - OverlapLines
	}

	for start := 0; start < totalLines; start += stepSize {
		end := start + linesPerChunk
		if end > totalLines {
			end = totalLines
		}

		subContent := strings.Join(lines[start:end], "\n")
		if len(subContent) >= MinChunkSize {
			*chunks = append(*chunks, CodeChunk{
				Content:   subContent,
				StartLine: chunk.StartLine + uint32(start),
				EndLine:   chunk.StartLine + uint32(end) - 1,
				ChunkType: chunk.ChunkType,
				Name:      chunk.Name,
				Language:  chunk.Language,
			})
		}

		if end >= totalLines {
			break
		}
	}
}

// mergeSmallChunks concatenates an undersized chunk with its successor
// while they are adjacent in the source and the pair stays within
// MaxChunkSize (counting the blank-line separator).
func mergeSmallChunks(chunks *[]CodeChunk) {
	if len(*chunks) < 2 {
		return
	}

	merged := make([]CodeChunk, 0, len(*chunks))
	current := (*chunks)[0]

	for _, next := range (*chunks)[1:] {
		if len(current.Content) < MinChunkSize*2 &&
			len(current.Content)+2+len(next.Content) <= MaxChunkSize &&
			current.EndLine+1 >= next.StartLine {
			current.Content = current.Content + "\n\n" + next.Content
			current.EndLine = next.EndLine
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)

	*chunks = merged
}

// chunkByLines is the fallback for unknown languages and files without
// semantic nodes: fixed windows with a small overlap, dropping windows
// below MinChunkSize.
func chunkByLines(content string, language Language) []CodeChunk {
	lines := splitLines(content)
	totalLines := len(lines)
	if totalLines == 0 {
		return nil
	}

	stepSize := FallbackWindowLines - OverlapLines
	var chunks []CodeChunk

	for start := 0; start < totalLines; start += stepSize {
		end := start + FallbackWindowLines
		if end > totalLines {
			end = totalLines
		}

		subContent := strings.Join(lines[start:end], "\n")
		if len(subContent) >= MinChunkSize {
			chunks = append(chunks, CodeChunk{
				Content:   subContent,
				StartLine: uint32(start) + 1,
				EndLine:   uint32(end),
				ChunkType: "block",
				Language:  language.String(),
			})
		}

		if end >= totalLines {
			break
		}
	}

	return chunks
}

// splitLines splits on newlines without a phantom trailing empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
