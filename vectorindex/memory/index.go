package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/eunoia-app/eunoia/vectorindex"
)

// recordKey scopes replace-by-id to a namespace: the same id may exist in
// several namespaces without the records clobbering each other.
type recordKey struct {
	namespace string
	id        string
}

type record struct {
	vector   []float32
	metadata map[string]any
}

type memoryIndex struct {
	records map[recordKey]record
	mtx     sync.RWMutex
}

func (s *memoryIndex) Upsert(ctx context.Context, namespace string, id string, vector []float32, metadata map[string]any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	cpy := make([]float32, len(vector))
	copy(cpy, vector)

	meta := make(map[string]any, len(metadata))
	maps.Copy(meta, metadata)

	s.records[recordKey{namespace: namespace, id: id}] = record{
		vector:   cpy,
		metadata: meta,
	}

	return nil
}

func (s *memoryIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]vectorindex.Match, error) {
	if topK < 1 {
		return nil, nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	candidates := make([]vectorindex.Match, 0, len(s.records))

	for key, rec := range s.records {
		if key.namespace != namespace {
			continue
		}
		if !matchesFilter(rec.metadata, filter) {
			continue
		}

		candidates = append(candidates, vectorindex.Match{
			Id:       key.id,
			Score:    float32(vectorindex.CosineSimilarity(vector, rec.vector)),
			Metadata: rec.metadata,
		})
	}

	vectorindex.SortMatches(candidates)

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	return candidates, nil
}

func matchesFilter(metadata map[string]any, filter map[string]any) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

func NewIndex(opts ...vectorindex.Option) *memoryIndex {
	_ = vectorindex.NewOptions(opts...)

	return &memoryIndex{
		records: map[recordKey]record{},
	}
}
