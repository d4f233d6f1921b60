package faces

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/auth"
	"github.com/your-org/lineage/internal/detector"
	"github.com/your-org/lineage/internal/models"
	"github.com/your-org/lineage/internal/vectorindex"
)

// memStore is an in-memory Store for tests. Iteration order is creation
// order, mirroring the storage layer's ORDER BY created_at, id.
type memStore struct {
	mu       sync.Mutex
	faces    map[uuid.UUID]*models.FaceRecord
	faceSeq  []uuid.UUID
	members  map[uuid.UUID]*models.Member
	families map[uuid.UUID]*models.Family
}

func newMemStore() *memStore {
	return &memStore{
		faces:    make(map[uuid.UUID]*models.FaceRecord),
		members:  make(map[uuid.UUID]*models.Member),
		families: make(map[uuid.UUID]*models.Family),
	}
}

func (m *memStore) addFamily(name string, createdBy uuid.UUID) *models.Family {
	f := &models.Family{ID: uuid.New(), Name: name, CreatedBy: createdBy, CreatedAt: time.Now()}
	m.families[f.ID] = f
	return f
}

func (m *memStore) addMember(familyID uuid.UUID, first, last string) *models.Member {
	mem := &models.Member{ID: uuid.New(), FamilyID: familyID, FirstName: first, LastName: last, CreatedAt: time.Now()}
	m.members[mem.ID] = mem
	return mem
}

func (m *memStore) CreateFace(_ context.Context, f *models.FaceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.faces[f.ID] = &cp
	m.faceSeq = append(m.faceSeq, f.ID)
	return nil
}

func (m *memStore) GetFace(_ context.Context, id uuid.UUID) (*models.FaceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.faces[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (m *memStore) UpdateFace(_ context.Context, f *models.FaceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.faces[f.ID]
	if !ok {
		return fmt.Errorf("face record not found")
	}
	cur.BoundingBox = f.BoundingBox
	cur.ThumbnailURL = f.ThumbnailURL
	cur.OriginalImageURL = f.OriginalImageURL
	cur.Emotion = f.Emotion
	cur.EmotionConfidence = f.EmotionConfidence
	return nil
}

func (m *memStore) UpdateFaceSync(_ context.Context, id uuid.UUID, state models.SyncState, vectorIndexID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.faces[id]
	if !ok {
		return fmt.Errorf("face record not found")
	}
	cur.SyncState = state
	cur.VectorIndexID = vectorIndexID
	return nil
}

func (m *memStore) DeleteFace(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.faces[id]; !ok {
		return fmt.Errorf("face record not found")
	}
	delete(m.faces, id)
	return nil
}

func (m *memStore) ListFacesByFamily(_ context.Context, familyID uuid.UUID) ([]models.FaceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FaceRecord
	for _, id := range m.faceSeq {
		f, ok := m.faces[id]
		if !ok {
			continue
		}
		mem, ok := m.members[f.MemberID]
		if !ok || mem.FamilyID != familyID {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

func (m *memStore) ListAllFaces(_ context.Context) ([]models.FaceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FaceRecord
	for _, id := range m.faceSeq {
		if f, ok := m.faces[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *memStore) SearchFaces(_ context.Context, q FaceQuery) ([]models.FaceDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []models.FaceDetail
	for _, id := range m.faceSeq {
		f, ok := m.faces[id]
		if !ok {
			continue
		}
		mem, ok := m.members[f.MemberID]
		if !ok {
			continue
		}
		fam, ok := m.families[mem.FamilyID]
		if !ok {
			continue
		}
		if q.FamilyID != nil && mem.FamilyID != *q.FamilyID {
			continue
		}
		if q.Restricted && !containsID(q.FamilyIDs, mem.FamilyID) {
			continue
		}
		if q.MemberID != nil && f.MemberID != *q.MemberID {
			continue
		}
		if q.Emotion != "" && !strings.EqualFold(f.Emotion, q.Emotion) {
			continue
		}
		if q.SearchQuery != "" {
			needle := strings.ToLower(q.SearchQuery)
			hay := strings.ToLower(mem.FirstName + " " + mem.LastName + " " + f.Emotion)
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		all = append(all, models.FaceDetail{
			FaceRecord: *f,
			MemberName: mem.FirstName + " " + mem.LastName,
			FamilyID:   fam.ID,
			FamilyName: fam.Name,
		})
	}

	less := func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) }
	switch q.SortBy {
	case SortByFaceID:
		less = func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() }
	case SortByConfidence:
		less = func(i, j int) bool { return all[i].Confidence < all[j].Confidence }
	case SortByMemberName:
		less = func(i, j int) bool { return all[i].MemberName < all[j].MemberName }
	case SortByFamilyName:
		less = func(i, j int) bool { return all[i].FamilyName < all[j].FamilyName }
	}
	if q.SortOrder == SortDesc {
		inner := less
		less = func(i, j int) bool { return inner(j, i) }
	}
	sort.SliceStable(all, less)

	total := len(all)
	start := (q.Page - 1) * q.PageSize
	if start >= total {
		return []models.FaceDetail{}, total, nil
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *memStore) GetMember(_ context.Context, id uuid.UUID) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, nil
	}
	cp := *mem
	return &cp, nil
}

func (m *memStore) GetFamily(_ context.Context, id uuid.UUID) (*models.Family, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.families[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// flakyIndex wraps the in-memory index with scripted failures.
type flakyIndex struct {
	*vectorindex.MemoryIndex
	mu              sync.Mutex
	failUpsertIDs   map[string]bool
	failAllUpserts  bool
	failDeleteByFam bool
	failDeleteByID  bool
	failQuery       bool
	calls           []string
}

func newFlakyIndex() *flakyIndex {
	return &flakyIndex{
		MemoryIndex:   vectorindex.NewMemoryIndex(),
		failUpsertIDs: make(map[string]bool),
	}
}

func (f *flakyIndex) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *flakyIndex) Upsert(ctx context.Context, id string, embedding []float32, meta vectorindex.Metadata) (string, error) {
	f.record("upsert:" + id)
	if f.failAllUpserts || f.failUpsertIDs[id] {
		return "", fmt.Errorf("index unavailable")
	}
	return f.MemoryIndex.Upsert(ctx, id, embedding, meta)
}

func (f *flakyIndex) DeleteByFamily(ctx context.Context, familyID uuid.UUID) error {
	f.record("delete_family:" + familyID.String())
	if f.failDeleteByFam {
		return fmt.Errorf("index unavailable")
	}
	return f.MemoryIndex.DeleteByFamily(ctx, familyID)
}

func (f *flakyIndex) DeleteByID(ctx context.Context, id string) error {
	f.record("delete_id:" + id)
	if f.failDeleteByID {
		return fmt.Errorf("index unavailable")
	}
	return f.MemoryIndex.DeleteByID(ctx, id)
}

func (f *flakyIndex) Query(ctx context.Context, embedding []float32, topK int, threshold float64, filter vectorindex.QueryFilter) ([]vectorindex.Hit, error) {
	if f.failQuery {
		return nil, fmt.Errorf("index unavailable")
	}
	return f.MemoryIndex.Query(ctx, embedding, topK, threshold, filter)
}

// fakeAuthz grants by explicit user sets; admins pass everything.
type fakeAuthz struct {
	managers map[uuid.UUID][]uuid.UUID // familyID -> userIDs
	viewers  map[uuid.UUID][]uuid.UUID
}

func newFakeAuthz() *fakeAuthz {
	return &fakeAuthz{
		managers: make(map[uuid.UUID][]uuid.UUID),
		viewers:  make(map[uuid.UUID][]uuid.UUID),
	}
}

func (a *fakeAuthz) allowManage(familyID, userID uuid.UUID) {
	a.managers[familyID] = append(a.managers[familyID], userID)
}

func (a *fakeAuthz) allowView(familyID, userID uuid.UUID) {
	a.viewers[familyID] = append(a.viewers[familyID], userID)
}

func (a *fakeAuthz) CanView(_ context.Context, p auth.Principal, familyID uuid.UUID) (bool, error) {
	if !p.Authenticated {
		return false, nil
	}
	if p.Admin {
		return true, nil
	}
	return containsID(a.viewers[familyID], p.UserID) || containsID(a.managers[familyID], p.UserID), nil
}

func (a *fakeAuthz) CanManage(_ context.Context, p auth.Principal, familyID uuid.UUID) (bool, error) {
	if !p.Authenticated {
		return false, nil
	}
	if p.Admin {
		return true, nil
	}
	return containsID(a.managers[familyID], p.UserID), nil
}

func (a *fakeAuthz) ViewableFamilies(_ context.Context, p auth.Principal) ([]uuid.UUID, error) {
	if !p.Authenticated {
		return []uuid.UUID{}, nil
	}
	if p.Admin {
		return nil, nil
	}
	var ids []uuid.UUID
	for fam, users := range a.viewers {
		if containsID(users, p.UserID) {
			ids = append(ids, fam)
		}
	}
	for fam, users := range a.managers {
		if containsID(users, p.UserID) && !containsID(ids, fam) {
			ids = append(ids, fam)
		}
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

// memPublisher records published events.
type memPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *memPublisher) PublishFaceEvent(_ context.Context, kind string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind)
	return nil
}

// fakeDetector returns preset detections.
type fakeDetector struct {
	detections []detector.Detection
	err        error
}

func (d *fakeDetector) Detect(context.Context, []byte, bool) ([]detector.Detection, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.detections, nil
}

// admin/user helpers

func adminPrincipal() auth.Principal {
	return auth.Principal{UserID: uuid.New(), Admin: true, Authenticated: true}
}

func userPrincipal() auth.Principal {
	return auth.Principal{UserID: uuid.New(), Authenticated: true}
}

func anonPrincipal() auth.Principal {
	return auth.Principal{}
}

func testFace(memberID uuid.UUID, embedding []float32) *models.FaceRecord {
	return &models.FaceRecord{
		ID:       uuid.New(),
		MemberID: memberID,
		BoundingBox: models.BoundingBox{
			X: 10, Y: 20, Width: 100, Height: 120,
		},
		Confidence: 0.92,
		Embedding:  embedding,
		SyncState:  models.SyncStateNotSynced,
	}
}
