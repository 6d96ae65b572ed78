// Package store provides the two search indexes: an HNSW vector store
// keyed by external string ids and a BM25 inverted index. Each owns its
// own on-disk files, independent of the catalog.
package store

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// HNSW parameters. The pure-Go graph exposes neither construction
// expansion nor quantization; neither is set or recorded.
const (
	hnswConnectivity    = 16
	hnswExpansionSearch = 64
)

// SearchResult is one vector search hit.
type SearchResult struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"` // 1 - cosine distance
	Metadata string  `json:"metadata"`
}

// storeMetadata is the JSON sidecar: the string-key mappings around the
// integer-keyed graph plus the monotonic id counter.
type storeMetadata struct {
	IDToKey  map[uint64]string `json:"id_to_key"`
	KeyToID  map[string]uint64 `json:"key_to_id"`
	Metadata map[string]string `json:"metadata"`
	NextID   uint64            `json:"next_id"`
}

// VectorStore is a persistent approximate-nearest-neighbor index over
// fixed-dimension vectors with caller-supplied string keys. Write paths
// require exclusive use; the internal mutex serializes in-process access.
type VectorStore struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	indexPath  string
	metaPath   string
	dimensions int

	idToKey  map[uint64]string
	keyToID  map[string]uint64
	metadata map[string]string
	nextID   uint64
}

// NewVectorStore creates a store at indexPath (sidecar at
// <indexPath>.meta.json). If the index file already exists an auto-load
// is attempted; load failures are swallowed so a fresh store always opens.
func NewVectorStore(indexPath string, dimensions int) (*VectorStore, error) {
	if dimensions <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "dimensions must be positive", nil)
	}

	s := &VectorStore{
		graph:      newGraph(),
		indexPath:  indexPath,
		metaPath:   indexPath + ".meta.json",
		dimensions: dimensions,
		idToKey:    make(map[uint64]string),
		keyToID:    make(map[string]uint64),
		metadata:   make(map[string]string),
	}

	if _, err := os.Stat(indexPath); err == nil {
		if err := s.load(); err != nil {
			slog.Warn("vector index auto-load failed, starting fresh",
				slog.String("path", indexPath),
				slog.String("error", err.Error()))
			s.reset()
		}
	}

	return s, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = hnswConnectivity
	g.EfSearch = hnswExpansionSearch
	g.Ml = 0.25
	return g
}

func (s *VectorStore) reset() {
	s.graph = newGraph()
	s.idToKey = make(map[uint64]string)
	s.keyToID = make(map[string]uint64)
	s.metadata = make(map[string]string)
	s.nextID = 0
}

// Add inserts one vector. An existing key is replaced: its old integer
// id is retired (tombstoned, never reused) and a fresh id assigned.
func (s *VectorStore) Add(key string, vector []float32, metadata string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(vector) != s.dimensions {
		return errors.DimensionError(s.dimensions, len(vector))
	}

	s.retire(key)
	s.insert(key, vector, metadata)
	return nil
}

// AddBatch inserts a batch of vectors under a contiguous id block.
// All inputs are validated before any mutation, so a failed call leaves
// the store untouched.
func (s *VectorStore) AddBatch(keys []string, vectors [][]float32, metadata []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) != len(vectors) || len(keys) != len(metadata) {
		return errors.New(errors.ErrCodeBatchMismatch, "mismatched batch sizes", nil)
	}
	if len(keys) == 0 {
		return nil
	}

	for _, v := range vectors {
		if len(v) != s.dimensions {
			return errors.DimensionError(s.dimensions, len(v))
		}
	}

	for _, key := range keys {
		s.retire(key)
	}

	// coder/hnsw does not tolerate concurrent adds, so the batch inserts
	// sequentially under the reserved id block.
	for i, key := range keys {
		s.insert(key, vectors[i], metadata[i])
	}
	return nil
}

// retire drops an existing key's mappings. The graph node stays behind
// as a tombstone; deleting nodes trips a coder/hnsw edge case when the
// last node goes, and retired ids are never reused anyway.
func (s *VectorStore) retire(key string) {
	if id, exists := s.keyToID[key]; exists {
		delete(s.idToKey, id)
		delete(s.keyToID, key)
		delete(s.metadata, key)
	}
}

func (s *VectorStore) insert(key string, vector []float32, metadata string) {
	id := s.nextID
	s.nextID++

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	s.graph.Add(hnsw.MakeNode(id, vec))

	s.idToKey[id] = key
	s.keyToID[key] = id
	s.metadata[key] = metadata
}

// Search returns up to limit nearest neighbors with score = 1 - cosine
// distance. Tombstoned graph nodes are skipped.
func (s *VectorStore) Search(query []float32, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimensions {
		return nil, errors.DimensionError(s.dimensions, len(query))
	}

	if s.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	nodes := s.graph.Search(normalized, limit)

	results := make([]SearchResult, 0, len(nodes))
	for _, node := range nodes {
		key, exists := s.idToKey[node.Key]
		if !exists {
			continue
		}
		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, SearchResult{
			ID:       key,
			Score:    1.0 - float64(distance),
			Metadata: s.metadata[key],
		})
	}
	return results, nil
}

// Remove deletes a key. Returns true if the key was present.
func (s *VectorStore) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keyToID[key]; !exists {
		return false
	}
	s.retire(key)
	return true
}

// Count returns the number of live keys.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.keyToID)
}

// Contains checks whether a key is present.
func (s *VectorStore) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.keyToID[key]
	return exists
}

// Keys returns all live keys, sorted for determinism.
func (s *VectorStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.keyToID))
	for key := range s.keyToID {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Metadata returns the metadata stored for a key.
func (s *VectorStore) Metadata(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.metadata[key]
	return meta, ok
}

// Save persists the graph binary and the JSON sidecar. Each file is
// written atomically (temp + rename); there is no cross-file atomicity.
// A graph loaded without its sidecar has no key mappings, so Search skips
// every node; a sidecar alone is not loaded by NewVectorStore, which only
// loads when the graph file exists. Search needs both files.
func (s *VectorStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if dir := filepath.Dir(s.indexPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.IOError("failed to create index directory", err)
		}
	}

	tmpIndex := s.indexPath + ".tmp"
	file, err := os.Create(tmpIndex)
	if err != nil {
		return errors.IOError("failed to create index file", err)
	}
	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpIndex)
		return errors.New(errors.ErrCodeSerializationFailed, "failed to export graph", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpIndex)
		return errors.IOError("failed to close index file", err)
	}
	if err := os.Rename(tmpIndex, s.indexPath); err != nil {
		_ = os.Remove(tmpIndex)
		return errors.IOError("failed to rename index file", err)
	}

	meta := storeMetadata{
		IDToKey:  s.idToKey,
		KeyToID:  s.keyToID,
		Metadata: s.metadata,
		NextID:   s.nextID,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return errors.New(errors.ErrCodeSerializationFailed, "failed to encode sidecar", err)
	}

	tmpMeta := s.metaPath + ".tmp"
	if err := os.WriteFile(tmpMeta, data, 0o644); err != nil {
		return errors.IOError("failed to write sidecar", err)
	}
	if err := os.Rename(tmpMeta, s.metaPath); err != nil {
		_ = os.Remove(tmpMeta)
		return errors.IOError("failed to rename sidecar", err)
	}

	return nil
}

// Load reads the graph binary and sidecar from disk.
func (s *VectorStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

func (s *VectorStore) load() error {
	if _, err := os.Stat(s.indexPath); err == nil {
		file, err := os.Open(s.indexPath)
		if err != nil {
			return errors.IOError("failed to open index file", err)
		}
		// coder/hnsw Import requires an io.ByteReader.
		if err := s.graph.Import(bufio.NewReader(file)); err != nil {
			_ = file.Close()
			return errors.New(errors.ErrCodeSerializationFailed, "failed to import graph", err)
		}
		if err := file.Close(); err != nil {
			return errors.IOError("failed to close index file", err)
		}
	}

	if _, err := os.Stat(s.metaPath); err == nil {
		data, err := os.ReadFile(s.metaPath)
		if err != nil {
			return errors.IOError("failed to read sidecar", err)
		}
		var meta storeMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return errors.New(errors.ErrCodeSerializationFailed, "failed to decode sidecar", err)
		}

		s.idToKey = meta.IDToKey
		s.keyToID = meta.KeyToID
		s.metadata = meta.Metadata
		s.nextID = meta.NextID
		if s.idToKey == nil {
			s.idToKey = make(map[uint64]string)
		}
		if s.keyToID == nil {
			s.keyToID = make(map[string]uint64)
		}
		if s.metadata == nil {
			s.metadata = make(map[string]string)
		}
	}

	return nil
}

// Clear rebuilds an empty index with the same parameters and deletes
// both files from disk.
func (s *VectorStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()

	if err := os.Remove(s.indexPath); err != nil && !os.IsNotExist(err) {
		return errors.IOError("failed to remove index file", err)
	}
	if err := os.Remove(s.metaPath); err != nil && !os.IsNotExist(err) {
		return errors.IOError("failed to remove sidecar", err)
	}
	return nil
}

// normalizeInPlace scales a vector to unit length.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
