package faces

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/auth"
	"github.com/your-org/lineage/internal/config"
	"github.com/your-org/lineage/internal/models"
	"github.com/your-org/lineage/internal/observability"
	"github.com/your-org/lineage/internal/vectorindex"
)

// SimilarityQuery asks for faces that look like the given embedding.
type SimilarityQuery struct {
	Embedding []float32
	TopK      int
	Threshold float64
	FamilyID  *uuid.UUID
	MemberID  *uuid.UUID
}

// SimilarityResult is one entry of a batch similarity answer. Failed items
// carry the error text; the batch itself still succeeds.
type SimilarityResult struct {
	Hits   []vectorindex.Hit `json:"hits"`
	Failed bool              `json:"failed,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Page is one page of attribute search results plus the total match count.
type Page struct {
	Records []models.FaceDetail `json:"records"`
	Total   int                 `json:"total"`
}

// Searcher answers similarity queries against the vector index and
// attribute queries against the relational store.
type Searcher struct {
	store Store
	index vectorindex.Client
	authz auth.FamilyAuthorizer
	cfg   config.SearchConfig
}

func NewSearcher(store Store, index vectorindex.Client, authz auth.FamilyAuthorizer, cfg config.SearchConfig) *Searcher {
	return &Searcher{store: store, index: index, authz: authz, cfg: cfg}
}

// SearchBySimilarity runs one bounded topK/threshold query. An empty index
// or a threshold nothing clears yields an empty list, not an error. A vector
// index failure is surfaced as ErrExternal: there is no local fallback for a
// similarity answer.
func (s *Searcher) SearchBySimilarity(ctx context.Context, p auth.Principal, q SimilarityQuery) ([]vectorindex.Hit, error) {
	if len(q.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", ErrValidation)
	}
	if err := s.authorizeSimilarity(ctx, p, q.FamilyID); err != nil {
		return nil, err
	}

	topK := q.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK > s.cfg.MaxTopK {
		topK = s.cfg.MaxTopK
	}
	threshold := q.Threshold
	if threshold <= 0 {
		threshold = s.cfg.DefaultThreshold
	}

	hits, err := s.index.Query(ctx, q.Embedding, topK, threshold, vectorindex.QueryFilter{
		FamilyID: q.FamilyID,
		MemberID: q.MemberID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: similarity query: %v", ErrExternal, err)
	}
	observability.SimilarityQueries.Inc()
	if hits == nil {
		hits = []vectorindex.Hit{}
	}
	return hits, nil
}

// SearchBySimilarityBatch answers one ranked list per query embedding,
// preserving input order. Failures are isolated per item.
func (s *Searcher) SearchBySimilarityBatch(ctx context.Context, p auth.Principal, queries []SimilarityQuery) ([]SimilarityResult, error) {
	results := make([]SimilarityResult, len(queries))
	for i, q := range queries {
		hits, err := s.SearchBySimilarity(ctx, p, q)
		if err != nil {
			results[i] = SimilarityResult{Failed: true, Error: err.Error()}
			continue
		}
		results[i] = SimilarityResult{Hits: hits}
	}
	return results, nil
}

// SearchByAttributes pages face records matching the filters, joined to
// member and family for name filtering, sorting, and enrichment. An
// unauthenticated caller sees nothing; a non-admin sees only families they
// created or hold a role in. An explicit family filter the caller cannot
// access is rejected outright, not silently narrowed.
func (s *Searcher) SearchByAttributes(ctx context.Context, p auth.Principal, q FaceQuery) (*Page, error) {
	if err := normalizeQuery(&q, s.cfg); err != nil {
		return nil, err
	}

	if q.FamilyID != nil {
		ok, err := s.authz.CanView(ctx, p, *q.FamilyID)
		if err != nil {
			return nil, fmt.Errorf("authorize family filter: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: family %s", ErrForbidden, *q.FamilyID)
		}
	} else if !p.Admin {
		if !p.Authenticated {
			return &Page{Records: []models.FaceDetail{}, Total: 0}, nil
		}
		ids, err := s.authz.ViewableFamilies(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("resolve viewable families: %w", err)
		}
		if len(ids) == 0 {
			return &Page{Records: []models.FaceDetail{}, Total: 0}, nil
		}
		q.FamilyIDs = ids
		q.Restricted = true
	}

	records, total, err := s.store.SearchFaces(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("attribute search: %w", err)
	}
	if records == nil {
		records = []models.FaceDetail{}
	}
	return &Page{Records: records, Total: total}, nil
}

func (s *Searcher) authorizeSimilarity(ctx context.Context, p auth.Principal, familyID *uuid.UUID) error {
	if familyID != nil {
		ok, err := s.authz.CanView(ctx, p, *familyID)
		if err != nil {
			return fmt.Errorf("authorize similarity search: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: family %s", ErrForbidden, *familyID)
		}
		return nil
	}
	// Unscoped similarity search crosses family boundaries.
	if !p.Admin {
		return fmt.Errorf("%w: unscoped similarity search requires an administrator", ErrForbidden)
	}
	return nil
}

func normalizeQuery(q *FaceQuery, cfg config.SearchConfig) error {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > cfg.MaxPageSize {
		q.PageSize = cfg.MaxPageSize
	}
	if q.SortBy == "" {
		q.SortBy = SortByCreated
	}
	switch q.SortBy {
	case SortByFaceID, SortByConfidence, SortByMemberName, SortByFamilyName, SortByCreated:
	default:
		return fmt.Errorf("%w: unknown sort field %q", ErrValidation, q.SortBy)
	}
	if q.SortOrder == "" {
		q.SortOrder = SortDesc
	}
	if q.SortOrder != SortAsc && q.SortOrder != SortDesc {
		return fmt.Errorf("%w: unknown sort order %q", ErrValidation, q.SortOrder)
	}
	return nil
}
