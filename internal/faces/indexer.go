package faces

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/models"
	"github.com/your-org/lineage/internal/observability"
	"github.com/your-org/lineage/internal/vectorindex"
)

// Event kinds published on terminal indexing outcomes.
const (
	EventFaceSynced     = "faces.synced"
	EventFaceSyncFailed = "faces.sync_failed"
	EventFaceDeleted    = "faces.deleted"
)

// SyncEvent is the payload for face sync lifecycle events.
type SyncEvent struct {
	FaceID   uuid.UUID `json:"face_id"`
	MemberID uuid.UUID `json:"member_id"`
	FamilyID uuid.UUID `json:"family_id"`
	State    string    `json:"state"`
}

// Indexer keeps one face record's projection in the vector index consistent
// with its relational state. It is the only component that transitions
// SyncState and VectorIndexID.
type Indexer struct {
	store  Store
	index  vectorindex.Client
	events Publisher
}

func NewIndexer(store Store, index vectorindex.Client, events Publisher) *Indexer {
	return &Indexer{store: store, index: index, events: events}
}

// IndexOne upserts the face's embedding under the record's own id and
// persists the resulting sync state. An upsert failure is recovered locally:
// the record is persisted as sync_failed and the returned error wraps
// ErrExternal so callers can distinguish it from a store failure. The
// relational record is never rolled back because of an index failure.
func (ix *Indexer) IndexOne(ctx context.Context, face *models.FaceRecord) error {
	if len(face.Embedding) == 0 {
		return fmt.Errorf("%w: face %s has empty embedding", ErrValidation, face.ID)
	}

	member, err := ix.store.GetMember(ctx, face.MemberID)
	if err != nil {
		return fmt.Errorf("resolve member %s: %w", face.MemberID, err)
	}
	if member == nil {
		return fmt.Errorf("%w: member %s", ErrNotFound, face.MemberID)
	}

	meta := vectorindex.Metadata{
		FamilyID:          member.FamilyID,
		MemberID:          face.MemberID,
		FaceID:            face.ID,
		ThumbnailURL:      face.ThumbnailURL,
		OriginalImageURL:  face.OriginalImageURL,
		Emotion:           face.Emotion,
		EmotionConfidence: face.EmotionConfidence,
	}

	externalID, upErr := ix.index.Upsert(ctx, face.ID.String(), face.Embedding, meta)
	if upErr == nil && externalID == "" {
		upErr = fmt.Errorf("upsert returned empty external id")
	}

	if upErr != nil {
		face.MarkSyncFailed()
		if err := ix.store.UpdateFaceSync(ctx, face.ID, face.SyncState, face.VectorIndexID); err != nil {
			return fmt.Errorf("persist sync_failed for face %s: %w", face.ID, err)
		}
		observability.FacesIndexed.WithLabelValues("failed").Inc()
		ix.publish(ctx, EventFaceSyncFailed, SyncEvent{
			FaceID: face.ID, MemberID: face.MemberID, FamilyID: member.FamilyID,
			State: string(face.SyncState),
		})
		return fmt.Errorf("%w: index face %s: %v", ErrExternal, face.ID, upErr)
	}

	face.MarkSynced(externalID)
	if err := ix.store.UpdateFaceSync(ctx, face.ID, face.SyncState, face.VectorIndexID); err != nil {
		return fmt.Errorf("persist synced for face %s: %w", face.ID, err)
	}
	observability.FacesIndexed.WithLabelValues("synced").Inc()
	ix.publish(ctx, EventFaceSynced, SyncEvent{
		FaceID: face.ID, MemberID: face.MemberID, FamilyID: member.FamilyID,
		State: string(face.SyncState),
	})
	return nil
}

func (ix *Indexer) publish(ctx context.Context, kind string, payload interface{}) {
	if ix.events == nil {
		return
	}
	if err := ix.events.PublishFaceEvent(ctx, kind, payload); err != nil {
		slog.Warn("publish face event", "kind", kind, "error", err)
	}
}
