package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	embedding []float32
	meta      Metadata
}

// MemoryIndex is an in-process Client used by tests and local development.
// It ranks by true cosine similarity, so the topK/threshold contract matches
// the production service.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memoryEntry)}
}

func (m *MemoryIndex) Upsert(_ context.Context, id string, embedding []float32, meta Metadata) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	m.entries[id] = memoryEntry{embedding: vec, meta: meta}
	return id, nil
}

func (m *MemoryIndex) DeleteByFamily(_ context.Context, familyID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if e.meta.FamilyID == familyID {
			delete(m.entries, id)
		}
	}
	return nil
}

func (m *MemoryIndex) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, embedding []float32, topK int, threshold float64, filter QueryFilter) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for id, e := range m.entries {
		if filter.FamilyID != nil && e.meta.FamilyID != *filter.FamilyID {
			continue
		}
		if filter.MemberID != nil && e.meta.MemberID != *filter.MemberID {
			continue
		}
		score := cosineSimilarity(embedding, e.embedding)
		if score < threshold {
			continue
		}
		hits = append(hits, Hit{ExternalID: id, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Len reports how many entries the index holds.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// cosineSimilarity maps the raw cosine from [-1,1] into [0,1] to match the
// score convention of the knowledge service.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
