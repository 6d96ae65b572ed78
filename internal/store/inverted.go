package store

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75

	// defaultAvgDocLength is used while the index holds no documents.
	defaultAvgDocLength = 100.0

	// minTokenLength: tokens this short or shorter are dropped.
	minTokenLength = 2
)

// KeywordResult is one BM25 search hit. Scores are normalized so the
// top result is exactly 1.0.
type KeywordResult struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// invertedIndexData is the persisted JSON shape. avg_doc_length is
// informational: it is written for compatibility and recomputed from
// chunk_tokens on load.
type invertedIndexData struct {
	TermToChunks map[string][]string          `json:"term_to_chunks"`
	ChunkTokens  map[string]map[string]uint32 `json:"chunk_tokens"`
	AvgDocLength float64                      `json:"avg_doc_length"`
}

// InvertedIndex is an in-memory BM25 index over chunk texts, persisted
// as a single JSON document.
type InvertedIndex struct {
	mu              sync.RWMutex
	indexPath       string
	termToChunks    map[string]map[string]struct{}
	chunkTokens     map[string]map[string]uint32
	totalTokenCount uint64
}

// NewInvertedIndex creates an empty index bound to indexPath.
func NewInvertedIndex(indexPath string) *InvertedIndex {
	return &InvertedIndex{
		indexPath:    indexPath,
		termToChunks: make(map[string]map[string]struct{}),
		chunkTokens:  make(map[string]map[string]uint32),
	}
}

// AddChunk tokenizes content and indexes it under chunkID. Re-adding an
// existing id overwrites it silently.
func (idx *InvertedIndex) AddChunk(chunkID, content string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.chunkTokens[chunkID]; exists {
		idx.removeLocked(chunkID)
	}

	tokens := tokenize(content)
	termFreq := make(map[string]uint32, len(tokens))

	for _, token := range tokens {
		termFreq[token]++

		postings, ok := idx.termToChunks[token]
		if !ok {
			postings = make(map[string]struct{})
			idx.termToChunks[token] = postings
		}
		postings[chunkID] = struct{}{}
	}

	idx.chunkTokens[chunkID] = termFreq
	idx.totalTokenCount += uint64(len(tokens))
}

// RemoveChunk drops a chunk from the index. Returns false if unknown.
func (idx *InvertedIndex) RemoveChunk(chunkID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.chunkTokens[chunkID]; !exists {
		return false
	}
	idx.removeLocked(chunkID)
	return true
}

func (idx *InvertedIndex) removeLocked(chunkID string) {
	tokens := idx.chunkTokens[chunkID]
	delete(idx.chunkTokens, chunkID)

	for token, count := range tokens {
		if uint64(count) > idx.totalTokenCount {
			idx.totalTokenCount = 0
		} else {
			idx.totalTokenCount -= uint64(count)
		}

		if postings, ok := idx.termToChunks[token]; ok {
			delete(postings, chunkID)
			if len(postings) == 0 {
				delete(idx.termToChunks, token)
			}
		}
	}
}

// Search scores the union of the query tokens' posting sets with BM25
// and normalizes by the max score. Zero-score candidates are dropped;
// results are sorted descending (ties broken by chunk id).
func (idx *InvertedIndex) Search(query string) []KeywordResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	candidates := make(map[string]struct{})
	for _, token := range queryTokens {
		for chunkID := range idx.termToChunks[token] {
			candidates[chunkID] = struct{}{}
		}
	}

	n := float64(len(idx.chunkTokens))
	avgDocLength := idx.avgDocLengthLocked()

	results := make([]KeywordResult, 0, len(candidates))
	for chunkID := range candidates {
		termFreq := idx.chunkTokens[chunkID]

		var docLength uint32
		for _, count := range termFreq {
			docLength += count
		}

		var score float64
		for _, term := range queryTokens {
			tf := float64(termFreq[term])
			if tf == 0 {
				continue
			}

			df := float64(len(idx.termToChunks[term]))
			idf := math.Log((n-df+0.5)/(df+0.5) + 1.0)

			tfNorm := (tf * (bm25K1 + 1.0)) /
				(tf + bm25K1*(1.0-bm25B+bm25B*(float64(docLength)/avgDocLength)))
			score += idf * tfNorm
		}

		if score > 0 {
			results = append(results, KeywordResult{ChunkID: chunkID, Score: score})
		}
	}

	if len(results) == 0 {
		return nil
	}

	maxScore := results[0].Score
	for _, r := range results[1:] {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for i := range results {
		results[i].Score /= maxScore
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	return results
}

// HasChunk reports whether a chunk id is indexed.
func (idx *InvertedIndex) HasChunk(chunkID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, exists := idx.chunkTokens[chunkID]
	return exists
}

// ChunkIDs returns all indexed chunk ids, sorted for determinism.
func (idx *InvertedIndex) ChunkIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]string, 0, len(idx.chunkTokens))
	for id := range idx.chunkTokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DocumentCount returns the number of indexed chunks.
func (idx *InvertedIndex) DocumentCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.chunkTokens)
}

// TotalTokenCount returns the token count across all indexed chunks.
func (idx *InvertedIndex) TotalTokenCount() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.totalTokenCount
}

// Clear empties the index in memory (the on-disk file is untouched).
func (idx *InvertedIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.termToChunks = make(map[string]map[string]struct{})
	idx.chunkTokens = make(map[string]map[string]uint32)
	idx.totalTokenCount = 0
}

// Save writes the index as one JSON document.
func (idx *InvertedIndex) Save() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if dir := filepath.Dir(idx.indexPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.IOError("failed to create index directory", err)
		}
	}

	data := invertedIndexData{
		TermToChunks: make(map[string][]string, len(idx.termToChunks)),
		ChunkTokens:  idx.chunkTokens,
		AvgDocLength: idx.avgDocLengthLocked(),
	}
	for term, postings := range idx.termToChunks {
		ids := make([]string, 0, len(postings))
		for id := range postings {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		data.TermToChunks[term] = ids
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return errors.New(errors.ErrCodeSerializationFailed, "failed to encode inverted index", err)
	}

	tmp := idx.indexPath + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return errors.IOError("failed to write inverted index", err)
	}
	if err := os.Rename(tmp, idx.indexPath); err != nil {
		_ = os.Remove(tmp)
		return errors.IOError("failed to rename inverted index", err)
	}
	return nil
}

// Load reads the JSON document, rebuilding posting sets and recomputing
// the token count from chunk_tokens. A missing file is not an error.
func (idx *InvertedIndex) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	encoded, err := os.ReadFile(idx.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.IOError("failed to read inverted index", err)
	}

	var data invertedIndexData
	if err := json.Unmarshal(encoded, &data); err != nil {
		return errors.New(errors.ErrCodeSerializationFailed, "failed to decode inverted index", err)
	}

	idx.termToChunks = make(map[string]map[string]struct{}, len(data.TermToChunks))
	for term, ids := range data.TermToChunks {
		postings := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			postings[id] = struct{}{}
		}
		idx.termToChunks[term] = postings
	}

	idx.chunkTokens = data.ChunkTokens
	if idx.chunkTokens == nil {
		idx.chunkTokens = make(map[string]map[string]uint32)
	}

	idx.totalTokenCount = 0
	for _, tokens := range idx.chunkTokens {
		for _, count := range tokens {
			idx.totalTokenCount += uint64(count)
		}
	}

	return nil
}

func (idx *InvertedIndex) avgDocLengthLocked() float64 {
	count := len(idx.chunkTokens)
	if count == 0 {
		return defaultAvgDocLength
	}
	return float64(idx.totalTokenCount) / float64(count)
}

// tokenize lowercases, maps everything except ASCII letters and digits
// to spaces, splits on whitespace and drops short tokens.
func tokenize(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		if r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	fields := strings.Fields(mapped)
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
