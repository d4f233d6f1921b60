package faces

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/config"
	"github.com/your-org/lineage/internal/models"
)

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultTopK:      5,
		DefaultThreshold: 0.7,
		MaxTopK:          100,
		MaxPageSize:      200,
	}
}

type searchFixture struct {
	store    *memStore
	index    *flakyIndex
	authz    *fakeAuthz
	indexer  *Indexer
	searcher *Searcher
	family   *models.Family
	member   *models.Member
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	store := newMemStore()
	fam := store.addFamily("Nováks", uuid.New())
	member := store.addMember(fam.ID, "Jan", "Novák")
	index := newFlakyIndex()
	authz := newFakeAuthz()
	return &searchFixture{
		store:    store,
		index:    index,
		authz:    authz,
		indexer:  NewIndexer(store, index, nil),
		searcher: NewSearcher(store, index, authz, testSearchConfig()),
		family:   fam,
		member:   member,
	}
}

// indexFace creates and syncs a face whose similarity against the (1, 0)
// query vector is exactly score (scores are raw cosine mapped into [0, 1]).
func (fx *searchFixture) indexFace(t *testing.T, member *models.Member, score float64) uuid.UUID {
	t.Helper()
	cos := 2*score - 1
	sin := math.Sqrt(1 - cos*cos)
	face := testFace(member.ID, []float32{float32(cos), float32(sin)})
	if err := fx.store.CreateFace(context.Background(), face); err != nil {
		t.Fatalf("create face: %v", err)
	}
	if err := fx.indexer.IndexOne(context.Background(), face); err != nil {
		t.Fatalf("index face: %v", err)
	}
	return face.ID
}

func queryVector() []float32 { return []float32{1, 0} }

func TestSearchBySimilarity_TopKAndThreshold(t *testing.T) {
	fx := newSearchFixture(t)
	for _, score := range []float64{0.6, 0.95, 0.8, 0.9} {
		fx.indexFace(t, fx.member, score)
	}

	hits, err := fx.searcher.SearchBySimilarity(context.Background(), adminPrincipal(), SimilarityQuery{
		Embedding: queryVector(),
		TopK:      2,
		Threshold: 0.75,
	})
	if err != nil {
		t.Fatalf("SearchBySimilarity: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for i, want := range []float64{0.95, 0.9} {
		if math.Abs(hits[i].Score-want) > 1e-6 {
			t.Errorf("hit %d: expected score %.2f, got %f", i, want, hits[i].Score)
		}
	}
}

func TestSearchBySimilarity_ThresholdExcludes(t *testing.T) {
	fx := newSearchFixture(t)
	for _, score := range []float64{0.6, 0.95, 0.8, 0.9} {
		fx.indexFace(t, fx.member, score)
	}

	hits, err := fx.searcher.SearchBySimilarity(context.Background(), adminPrincipal(), SimilarityQuery{
		Embedding: queryVector(),
		TopK:      10,
		Threshold: 0.85,
	})
	if err != nil {
		t.Fatalf("SearchBySimilarity: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits above 0.85, got %d", len(hits))
	}
}

func TestSearchBySimilarity_EmptyIndex(t *testing.T) {
	fx := newSearchFixture(t)

	hits, err := fx.searcher.SearchBySimilarity(context.Background(), adminPrincipal(), SimilarityQuery{
		Embedding: queryVector(),
	})
	if err != nil {
		t.Fatalf("SearchBySimilarity: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("expected empty hit list, got %v", hits)
	}
}

func TestSearchBySimilarity_EmptyEmbedding(t *testing.T) {
	fx := newSearchFixture(t)

	_, err := fx.searcher.SearchBySimilarity(context.Background(), adminPrincipal(), SimilarityQuery{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSearchBySimilarity_IndexFailure(t *testing.T) {
	fx := newSearchFixture(t)
	fx.index.failQuery = true

	_, err := fx.searcher.SearchBySimilarity(context.Background(), adminPrincipal(), SimilarityQuery{
		Embedding: queryVector(),
	})
	if !errors.Is(err, ErrExternal) {
		t.Fatalf("expected ErrExternal, got %v", err)
	}
}

func TestSearchBySimilarity_FamilyFilter(t *testing.T) {
	fx := newSearchFixture(t)
	otherFam := fx.store.addFamily("Svobodas", uuid.New())
	otherMember := fx.store.addMember(otherFam.ID, "Eva", "Svobodová")

	mine := fx.indexFace(t, fx.member, 0.9)
	fx.indexFace(t, otherMember, 0.95)

	hits, err := fx.searcher.SearchBySimilarity(context.Background(), adminPrincipal(), SimilarityQuery{
		Embedding: queryVector(),
		FamilyID:  &fx.family.ID,
	})
	if err != nil {
		t.Fatalf("SearchBySimilarity: %v", err)
	}
	if len(hits) != 1 || hits[0].ExternalID != mine.String() {
		t.Errorf("expected only the scoped family's face, got %v", hits)
	}
}

func TestSearchBySimilarity_MemberFilter(t *testing.T) {
	fx := newSearchFixture(t)
	sibling := fx.store.addMember(fx.family.ID, "Petr", "Novák")

	want := fx.indexFace(t, fx.member, 0.9)
	fx.indexFace(t, sibling, 0.95)

	hits, err := fx.searcher.SearchBySimilarity(context.Background(), adminPrincipal(), SimilarityQuery{
		Embedding: queryVector(),
		FamilyID:  &fx.family.ID,
		MemberID:  &fx.member.ID,
	})
	if err != nil {
		t.Fatalf("SearchBySimilarity: %v", err)
	}
	if len(hits) != 1 || hits[0].ExternalID != want.String() {
		t.Errorf("expected only the member's face, got %v", hits)
	}
}

func TestSearchBySimilarity_UnscopedRequiresAdmin(t *testing.T) {
	fx := newSearchFixture(t)

	_, err := fx.searcher.SearchBySimilarity(context.Background(), userPrincipal(), SimilarityQuery{
		Embedding: queryVector(),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSearchBySimilarity_ForbiddenFamily(t *testing.T) {
	fx := newSearchFixture(t)

	_, err := fx.searcher.SearchBySimilarity(context.Background(), userPrincipal(), SimilarityQuery{
		Embedding: queryVector(),
		FamilyID:  &fx.family.ID,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSearchBySimilarity_ViewerAllowed(t *testing.T) {
	fx := newSearchFixture(t)
	fx.indexFace(t, fx.member, 0.9)
	viewer := userPrincipal()
	fx.authz.allowView(fx.family.ID, viewer.UserID)

	hits, err := fx.searcher.SearchBySimilarity(context.Background(), viewer, SimilarityQuery{
		Embedding: queryVector(),
		FamilyID:  &fx.family.ID,
	})
	if err != nil {
		t.Fatalf("SearchBySimilarity as viewer: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected 1 hit, got %d", len(hits))
	}
}

// A batch answer preserves input order and isolates per-item failures.
func TestSearchBySimilarityBatch(t *testing.T) {
	fx := newSearchFixture(t)
	fx.indexFace(t, fx.member, 0.9)

	results, err := fx.searcher.SearchBySimilarityBatch(context.Background(), adminPrincipal(), []SimilarityQuery{
		{Embedding: queryVector()},
		{}, // empty embedding fails validation
		{Embedding: queryVector()},
	})
	if err != nil {
		t.Fatalf("SearchBySimilarityBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Failed || len(results[0].Hits) != 1 {
		t.Errorf("result 0: %+v", results[0])
	}
	if !results[1].Failed || results[1].Error == "" {
		t.Errorf("result 1 should have failed: %+v", results[1])
	}
	if results[2].Failed || len(results[2].Hits) != 1 {
		t.Errorf("result 2: %+v", results[2])
	}
}

func (fx *searchFixture) seedDetailFaces(t *testing.T) {
	t.Helper()
	happy := 0.8
	faces := []struct {
		member  *models.Member
		emotion string
		conf    float64
	}{
		{fx.member, "Happy", 0.9},
		{fx.member, "sad", 0.5},
	}
	for _, fc := range faces {
		face := testFace(fc.member.ID, []float32{1})
		face.Emotion = fc.emotion
		face.Confidence = fc.conf
		face.EmotionConfidence = &happy
		if err := fx.store.CreateFace(context.Background(), face); err != nil {
			t.Fatalf("seed face: %v", err)
		}
	}
}

func TestSearchByAttributes_Unauthenticated(t *testing.T) {
	fx := newSearchFixture(t)
	fx.seedDetailFaces(t)

	page, err := fx.searcher.SearchByAttributes(context.Background(), anonPrincipal(), FaceQuery{})
	if err != nil {
		t.Fatalf("SearchByAttributes: %v", err)
	}
	if len(page.Records) != 0 || page.Total != 0 {
		t.Errorf("expected empty page, got %+v", page)
	}
}

func TestSearchByAttributes_RestrictedToViewable(t *testing.T) {
	fx := newSearchFixture(t)
	fx.seedDetailFaces(t)

	otherFam := fx.store.addFamily("Svobodas", uuid.New())
	otherMember := fx.store.addMember(otherFam.ID, "Eva", "Svobodová")
	fx.store.CreateFace(context.Background(), testFace(otherMember.ID, []float32{1}))

	viewer := userPrincipal()
	fx.authz.allowView(fx.family.ID, viewer.UserID)

	page, err := fx.searcher.SearchByAttributes(context.Background(), viewer, FaceQuery{})
	if err != nil {
		t.Fatalf("SearchByAttributes: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("expected 2 visible faces, got %d", page.Total)
	}
	for _, r := range page.Records {
		if r.FamilyID != fx.family.ID {
			t.Errorf("leaked record from family %s", r.FamilyID)
		}
	}
}

func TestSearchByAttributes_NoViewableFamilies(t *testing.T) {
	fx := newSearchFixture(t)
	fx.seedDetailFaces(t)

	page, err := fx.searcher.SearchByAttributes(context.Background(), userPrincipal(), FaceQuery{})
	if err != nil {
		t.Fatalf("SearchByAttributes: %v", err)
	}
	if page.Total != 0 || len(page.Records) != 0 {
		t.Errorf("expected empty page, got %+v", page)
	}
}

func TestSearchByAttributes_ForbiddenFamilyFilter(t *testing.T) {
	fx := newSearchFixture(t)
	fx.seedDetailFaces(t)

	_, err := fx.searcher.SearchByAttributes(context.Background(), userPrincipal(), FaceQuery{FamilyID: &fx.family.ID})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSearchByAttributes_EmotionCaseInsensitive(t *testing.T) {
	fx := newSearchFixture(t)
	fx.seedDetailFaces(t)

	page, err := fx.searcher.SearchByAttributes(context.Background(), adminPrincipal(), FaceQuery{Emotion: "HAPPY"})
	if err != nil {
		t.Fatalf("SearchByAttributes: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 match, got %d", page.Total)
	}
	if page.Records[0].Emotion != "Happy" {
		t.Errorf("unexpected record: %+v", page.Records[0])
	}
}

func TestSearchByAttributes_FreeText(t *testing.T) {
	fx := newSearchFixture(t)
	fx.seedDetailFaces(t)

	page, err := fx.searcher.SearchByAttributes(context.Background(), adminPrincipal(), FaceQuery{SearchQuery: "novák"})
	if err != nil {
		t.Fatalf("SearchByAttributes: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("expected both of Novák's faces, got %d", page.Total)
	}
}

func TestSearchByAttributes_Pagination(t *testing.T) {
	fx := newSearchFixture(t)
	fx.seedDetailFaces(t)

	page, err := fx.searcher.SearchByAttributes(context.Background(), adminPrincipal(), FaceQuery{Page: 1, PageSize: 1})
	if err != nil {
		t.Fatalf("SearchByAttributes: %v", err)
	}
	if len(page.Records) != 1 || page.Total != 2 {
		t.Errorf("expected 1 of 2, got %d of %d", len(page.Records), page.Total)
	}

	// A page past the end is empty but still reports the total.
	page, err = fx.searcher.SearchByAttributes(context.Background(), adminPrincipal(), FaceQuery{Page: 5, PageSize: 1})
	if err != nil {
		t.Fatalf("SearchByAttributes: %v", err)
	}
	if len(page.Records) != 0 || page.Total != 2 {
		t.Errorf("expected empty page with total 2, got %d of %d", len(page.Records), page.Total)
	}
}

func TestSearchByAttributes_SortByConfidence(t *testing.T) {
	fx := newSearchFixture(t)
	fx.seedDetailFaces(t)

	page, err := fx.searcher.SearchByAttributes(context.Background(), adminPrincipal(), FaceQuery{
		SortBy:    SortByConfidence,
		SortOrder: SortAsc,
	})
	if err != nil {
		t.Fatalf("SearchByAttributes: %v", err)
	}
	if len(page.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page.Records))
	}
	if page.Records[0].Confidence > page.Records[1].Confidence {
		t.Errorf("expected ascending confidence, got %f then %f",
			page.Records[0].Confidence, page.Records[1].Confidence)
	}
}

func TestSearchByAttributes_InvalidSort(t *testing.T) {
	fx := newSearchFixture(t)

	_, err := fx.searcher.SearchByAttributes(context.Background(), adminPrincipal(), FaceQuery{SortBy: "shoe_size"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
