package faces

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/auth"
	"github.com/your-org/lineage/internal/detector"
	"github.com/your-org/lineage/internal/models"
	"github.com/your-org/lineage/internal/observability"
)

// FaceDetector is the external detection collaborator: image in, candidate
// faces out. The core never runs the model itself.
type FaceDetector interface {
	Detect(ctx context.Context, image []byte, resize bool) ([]detector.Detection, error)
}

// CreateFaceInput carries a detection result accepted for a member.
type CreateFaceInput struct {
	MemberID          uuid.UUID
	BoundingBox       models.BoundingBox
	Confidence        float64
	Embedding         []float32
	Emotion           string
	EmotionConfidence *float64
	ThumbnailURL      string
	OriginalImageURL  string
}

// UpdateFaceInput is an explicit correction of a face record. Nil fields are
// left untouched; sync fields are never writable here.
type UpdateFaceInput struct {
	BoundingBox       *models.BoundingBox
	Emotion           *string
	EmotionConfidence *float64
}

// Service owns the face record lifecycle: creation from detection output,
// corrections, deletion, and the indexing side effects of each.
// IndexDeleter is the slice of the vector index contract deletion needs.
type IndexDeleter interface {
	DeleteByID(ctx context.Context, id string) error
}

type Service struct {
	store    Store
	indexer  *Indexer
	index    IndexDeleter
	media    MediaStore
	authz    auth.FamilyAuthorizer
	events   Publisher
	detector FaceDetector
}

type ServiceDeps struct {
	Store    Store
	Indexer  *Indexer
	Index    IndexDeleter
	Media    MediaStore
	Authz    auth.FamilyAuthorizer
	Events   Publisher
	Detector FaceDetector
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		store:    deps.Store,
		indexer:  deps.Indexer,
		index:    deps.Index,
		media:    deps.Media,
		authz:    deps.Authz,
		events:   deps.Events,
		detector: deps.Detector,
	}
}

// CreateFaceRecord persists a new face record and synchronizes it to the
// vector index. Indexing failure never fails creation: the record stays with
// sync_state=sync_failed and reconciliation repairs it later.
func (s *Service) CreateFaceRecord(ctx context.Context, p auth.Principal, in CreateFaceInput) (*models.FaceRecord, error) {
	if err := validateFaceInput(in); err != nil {
		return nil, err
	}

	member, err := s.store.GetMember(ctx, in.MemberID)
	if err != nil {
		return nil, fmt.Errorf("resolve member %s: %w", in.MemberID, err)
	}
	if member == nil {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, in.MemberID)
	}
	if err := s.requireManage(ctx, p, member.FamilyID); err != nil {
		return nil, err
	}

	face := &models.FaceRecord{
		ID:                uuid.New(),
		MemberID:          in.MemberID,
		BoundingBox:       in.BoundingBox,
		Confidence:        in.Confidence,
		Embedding:         in.Embedding,
		ThumbnailURL:      in.ThumbnailURL,
		OriginalImageURL:  in.OriginalImageURL,
		Emotion:           in.Emotion,
		EmotionConfidence: in.EmotionConfidence,
		SyncState:         models.SyncStateNotSynced,
		CreatedBy:         p.UserID,
	}
	if err := s.store.CreateFace(ctx, face); err != nil {
		return nil, fmt.Errorf("create face record: %w", err)
	}

	if err := s.indexer.IndexOne(ctx, face); err != nil {
		slog.Warn("face created but indexing failed", "face_id", face.ID, "error", err)
	}
	return face, nil
}

// DetectAndCreate runs the external detector on an image and creates one
// face record per detected face. A detector outage is surfaced: without
// detections there is nothing to create.
func (s *Service) DetectAndCreate(ctx context.Context, p auth.Principal, memberID uuid.UUID, image []byte, resize bool, originalImageURL string) ([]models.FaceRecord, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrValidation)
	}
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("resolve member %s: %w", memberID, err)
	}
	if member == nil {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, memberID)
	}
	if err := s.requireManage(ctx, p, member.FamilyID); err != nil {
		return nil, err
	}

	detections, err := s.detector.Detect(ctx, image, resize)
	if err != nil {
		return nil, fmt.Errorf("%w: detect faces: %v", ErrExternal, err)
	}

	created := make([]models.FaceRecord, 0, len(detections))
	for _, d := range detections {
		in := CreateFaceInput{
			MemberID:          memberID,
			BoundingBox:       d.BoundingBox,
			Confidence:        d.Confidence,
			Embedding:         d.Embedding,
			Emotion:           d.Emotion,
			EmotionConfidence: d.EmotionConfidence,
			OriginalImageURL:  originalImageURL,
		}
		if err := validateFaceInput(in); err != nil {
			slog.Warn("skipping invalid detection", "member_id", memberID, "error", err)
			continue
		}

		face := &models.FaceRecord{
			ID:                uuid.New(),
			MemberID:          memberID,
			BoundingBox:       in.BoundingBox,
			Confidence:        in.Confidence,
			Embedding:         in.Embedding,
			OriginalImageURL:  in.OriginalImageURL,
			Emotion:           in.Emotion,
			EmotionConfidence: in.EmotionConfidence,
			SyncState:         models.SyncStateNotSynced,
			CreatedBy:         p.UserID,
		}

		if d.ThumbnailBase64 != "" && s.media != nil {
			if thumb, err := base64.StdEncoding.DecodeString(d.ThumbnailBase64); err == nil {
				url, err := s.media.PutThumbnail(ctx, memberID, face.ID, thumb)
				if err != nil {
					slog.Warn("store thumbnail", "face_id", face.ID, "error", err)
				} else {
					face.ThumbnailURL = url
				}
			}
		}

		if err := s.store.CreateFace(ctx, face); err != nil {
			return created, fmt.Errorf("create face record: %w", err)
		}
		if err := s.indexer.IndexOne(ctx, face); err != nil {
			slog.Warn("face created but indexing failed", "face_id", face.ID, "error", err)
		}
		created = append(created, *face)
	}
	return created, nil
}

// GetFace returns one face record the principal may view.
func (s *Service) GetFace(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.FaceRecord, error) {
	face, member, err := s.loadFace(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.authz.CanView(ctx, p, member.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("authorize view: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: face %s", ErrForbidden, id)
	}
	return face, nil
}

// UpdateFaceRecord applies an explicit correction and re-indexes. The
// re-index failure is recovered locally, same as on creation.
func (s *Service) UpdateFaceRecord(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateFaceInput) (*models.FaceRecord, error) {
	face, member, err := s.loadFace(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireManage(ctx, p, member.FamilyID); err != nil {
		return nil, err
	}

	if in.BoundingBox != nil {
		face.BoundingBox = *in.BoundingBox
	}
	if in.Emotion != nil {
		face.Emotion = *in.Emotion
	}
	if in.EmotionConfidence != nil {
		face.EmotionConfidence = in.EmotionConfidence
	}
	if err := validateFaceInput(CreateFaceInput{
		MemberID:          face.MemberID,
		BoundingBox:       face.BoundingBox,
		Confidence:        face.Confidence,
		Embedding:         face.Embedding,
		EmotionConfidence: face.EmotionConfidence,
	}); err != nil {
		return nil, err
	}

	if err := s.store.UpdateFace(ctx, face); err != nil {
		return nil, fmt.Errorf("update face record: %w", err)
	}
	if err := s.indexer.IndexOne(ctx, face); err != nil {
		slog.Warn("face updated but re-indexing failed", "face_id", face.ID, "error", err)
	}
	return face, nil
}

// DeleteFaceRecord removes the local record and best-effort removes its
// index entry and media. External failures are logged; local deletion wins.
func (s *Service) DeleteFaceRecord(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	face, member, err := s.loadFace(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireManage(ctx, p, member.FamilyID); err != nil {
		return err
	}

	if err := s.store.DeleteFace(ctx, id); err != nil {
		return fmt.Errorf("delete face record: %w", err)
	}
	observability.FacesDeleted.Inc()

	// Upserts always use the record's own id, so delete by that even when
	// the record never reached synced state.
	externalID := face.ID.String()
	if face.VectorIndexID != nil {
		externalID = *face.VectorIndexID
	}
	if err := s.index.DeleteByID(ctx, externalID); err != nil {
		slog.Warn("delete face index entry", "face_id", face.ID, "error", err)
	}
	if s.media != nil {
		if err := s.media.DeleteFaceObjects(ctx, face.MemberID, face.ID); err != nil {
			slog.Warn("delete face media", "face_id", face.ID, "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishFaceEvent(ctx, EventFaceDeleted, SyncEvent{
			FaceID: face.ID, MemberID: face.MemberID, FamilyID: member.FamilyID,
		}); err != nil {
			slog.Warn("publish face deleted event", "error", err)
		}
	}
	return nil
}

func (s *Service) loadFace(ctx context.Context, id uuid.UUID) (*models.FaceRecord, *models.Member, error) {
	face, err := s.store.GetFace(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load face %s: %w", id, err)
	}
	if face == nil {
		return nil, nil, fmt.Errorf("%w: face %s", ErrNotFound, id)
	}
	member, err := s.store.GetMember(ctx, face.MemberID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve member %s: %w", face.MemberID, err)
	}
	if member == nil {
		return nil, nil, fmt.Errorf("%w: member %s", ErrNotFound, face.MemberID)
	}
	return face, member, nil
}

func (s *Service) requireManage(ctx context.Context, p auth.Principal, familyID uuid.UUID) error {
	ok, err := s.authz.CanManage(ctx, p, familyID)
	if err != nil {
		return fmt.Errorf("authorize manage: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: family %s", ErrForbidden, familyID)
	}
	return nil
}

func validateFaceInput(in CreateFaceInput) error {
	if len(in.Embedding) == 0 {
		return fmt.Errorf("%w: embedding is required", ErrValidation)
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range [0,1]", ErrValidation, in.Confidence)
	}
	b := in.BoundingBox
	if b.X < 0 || b.Y < 0 {
		return fmt.Errorf("%w: bounding box origin must be non-negative", ErrValidation)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: bounding box dimensions must be positive", ErrValidation)
	}
	if in.EmotionConfidence != nil && (*in.EmotionConfidence < 0 || *in.EmotionConfidence > 1) {
		return fmt.Errorf("%w: emotion confidence %v out of range [0,1]", ErrValidation, *in.EmotionConfidence)
	}
	return nil
}

// IsNotFound and friends let handlers map errors without importing errors
// matching logic everywhere.
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool  { return errors.Is(err, ErrForbidden) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsExternal(err error) bool   { return errors.Is(err, ErrExternal) }
