package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/lineage/internal/config"
	"github.com/your-org/lineage/internal/faces"
	"github.com/your-org/lineage/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Face records ---

const faceColumns = `f.id, f.member_id, f.bbox_x, f.bbox_y, f.bbox_width, f.bbox_height,
	f.confidence, f.embedding, f.thumbnail_url, f.original_image_url,
	f.emotion, f.emotion_confidence, f.sync_state, f.vector_index_id,
	f.created_by, f.created_at, f.updated_at`

func (s *PostgresStore) CreateFace(ctx context.Context, f *models.FaceRecord) error {
	vec := pgvector.NewVector(f.Embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_records
		 (id, member_id, bbox_x, bbox_y, bbox_width, bbox_height, confidence, embedding,
		  thumbnail_url, original_image_url, emotion, emotion_confidence,
		  sync_state, vector_index_id, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING created_at, updated_at`,
		f.ID, f.MemberID, f.BoundingBox.X, f.BoundingBox.Y, f.BoundingBox.Width, f.BoundingBox.Height,
		f.Confidence, vec, f.ThumbnailURL, f.OriginalImageURL, f.Emotion, f.EmotionConfidence,
		f.SyncState, f.VectorIndexID, f.CreatedBy,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create face record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFace(ctx context.Context, id uuid.UUID) (*models.FaceRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+faceColumns+` FROM face_records f WHERE f.id = $1`, id)
	f, err := scanFace(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get face record: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) UpdateFace(ctx context.Context, f *models.FaceRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE face_records SET
		 bbox_x = $2, bbox_y = $3, bbox_width = $4, bbox_height = $5,
		 thumbnail_url = $6, original_image_url = $7,
		 emotion = $8, emotion_confidence = $9, updated_at = now()
		 WHERE id = $1`,
		f.ID, f.BoundingBox.X, f.BoundingBox.Y, f.BoundingBox.Width, f.BoundingBox.Height,
		f.ThumbnailURL, f.OriginalImageURL, f.Emotion, f.EmotionConfidence)
	if err != nil {
		return fmt.Errorf("update face record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("face record not found")
	}
	return nil
}

func (s *PostgresStore) UpdateFaceSync(ctx context.Context, id uuid.UUID, state models.SyncState, vectorIndexID *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE face_records SET sync_state = $2, vector_index_id = $3, updated_at = now() WHERE id = $1`,
		id, state, vectorIndexID)
	if err != nil {
		return fmt.Errorf("update face sync state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("face record not found")
	}
	return nil
}

func (s *PostgresStore) DeleteFace(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM face_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete face record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("face record not found")
	}
	return nil
}

// ListFacesByFamily returns every face record owned by a member of the
// family, in stable creation order.
func (s *PostgresStore) ListFacesByFamily(ctx context.Context, familyID uuid.UUID) ([]models.FaceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+faceColumns+`
		 FROM face_records f
		 JOIN members m ON m.id = f.member_id
		 WHERE m.family_id = $1
		 ORDER BY f.created_at, f.id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list faces by family: %w", err)
	}
	defer rows.Close()
	return collectFaces(rows)
}

func (s *PostgresStore) ListAllFaces(ctx context.Context) ([]models.FaceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+faceColumns+`
		 FROM face_records f
		 JOIN members m ON m.id = f.member_id
		 ORDER BY f.created_at, f.id`)
	if err != nil {
		return nil, fmt.Errorf("list all faces: %w", err)
	}
	defer rows.Close()
	return collectFaces(rows)
}

// SearchFaces pages face records joined to member and family, applying the
// attribute filters and sort of the query.
func (s *PostgresStore) SearchFaces(ctx context.Context, q faces.FaceQuery) ([]models.FaceDetail, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if q.FamilyID != nil {
		where += fmt.Sprintf(" AND m.family_id = $%d", argIdx)
		args = append(args, *q.FamilyID)
		argIdx++
	} else if q.Restricted {
		where += fmt.Sprintf(" AND m.family_id = ANY($%d)", argIdx)
		args = append(args, q.FamilyIDs)
		argIdx++
	}
	if q.MemberID != nil {
		where += fmt.Sprintf(" AND f.member_id = $%d", argIdx)
		args = append(args, *q.MemberID)
		argIdx++
	}
	if q.Emotion != "" {
		where += fmt.Sprintf(" AND lower(f.emotion) = lower($%d)", argIdx)
		args = append(args, q.Emotion)
		argIdx++
	}
	if q.SearchQuery != "" {
		where += fmt.Sprintf(
			" AND (m.first_name ILIKE $%d OR m.last_name ILIKE $%d OR f.emotion ILIKE $%d)",
			argIdx, argIdx, argIdx)
		args = append(args, "%"+q.SearchQuery+"%")
		argIdx++
	}

	base := ` FROM face_records f
		 JOIN members m ON m.id = f.member_id
		 JOIN families fam ON fam.id = m.family_id ` + where

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*)"+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count face search: %w", err)
	}

	order := sortExpr(q.SortBy)
	dir := "DESC"
	if q.SortOrder == faces.SortAsc {
		dir = "ASC"
	}

	query := fmt.Sprintf(
		`SELECT `+faceColumns+`, m.first_name, m.last_name, fam.id, fam.name
		 %s ORDER BY %s %s, f.id LIMIT $%d OFFSET $%d`,
		base, order, dir, argIdx, argIdx+1)
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search faces: %w", err)
	}
	defer rows.Close()

	var details []models.FaceDetail
	for rows.Next() {
		var d models.FaceDetail
		var vec pgvector.Vector
		var firstName, lastName string
		if err := rows.Scan(
			&d.ID, &d.MemberID, &d.BoundingBox.X, &d.BoundingBox.Y, &d.BoundingBox.Width, &d.BoundingBox.Height,
			&d.Confidence, &vec, &d.ThumbnailURL, &d.OriginalImageURL,
			&d.Emotion, &d.EmotionConfidence, &d.SyncState, &d.VectorIndexID,
			&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
			&firstName, &lastName, &d.FamilyID, &d.FamilyName,
		); err != nil {
			return nil, 0, fmt.Errorf("scan face detail: %w", err)
		}
		d.Embedding = vec.Slice()
		d.MemberName = firstName + " " + lastName
		details = append(details, d)
	}
	return details, total, nil
}

func sortExpr(by faces.SortField) string {
	switch by {
	case faces.SortByFaceID:
		return "f.id"
	case faces.SortByConfidence:
		return "f.confidence"
	case faces.SortByMemberName:
		return "m.last_name"
	case faces.SortByFamilyName:
		return "fam.name"
	default:
		return "f.created_at"
	}
}

// --- Members & families ---

func (s *PostgresStore) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m := &models.Member{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, family_id, first_name, last_name, created_at, updated_at FROM members WHERE id = $1`, id,
	).Scan(&m.ID, &m.FamilyID, &m.FirstName, &m.LastName, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) GetFamily(ctx context.Context, id uuid.UUID) (*models.Family, error) {
	f := &models.Family{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_by, created_at, updated_at FROM families WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

// --- Roles (auth.RoleStore) ---

func (s *PostgresStore) FamilyRole(ctx context.Context, familyID, userID uuid.UUID) (models.FamilyRole, bool, error) {
	var role models.FamilyRole
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM family_roles WHERE family_id = $1 AND user_id = $2`, familyID, userID,
	).Scan(&role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get family role: %w", err)
	}
	return role, true, nil
}

func (s *PostgresStore) FamilyCreator(ctx context.Context, familyID uuid.UUID) (uuid.UUID, bool, error) {
	var creator uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT created_by FROM families WHERE id = $1`, familyID,
	).Scan(&creator)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("get family creator: %w", err)
	}
	return creator, true, nil
}

func (s *PostgresStore) FamiliesForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM families WHERE created_by = $1
		 UNION
		 SELECT family_id FROM family_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list families for user: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan family id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFace(row rowScanner) (*models.FaceRecord, error) {
	f := &models.FaceRecord{}
	var vec pgvector.Vector
	err := row.Scan(
		&f.ID, &f.MemberID, &f.BoundingBox.X, &f.BoundingBox.Y, &f.BoundingBox.Width, &f.BoundingBox.Height,
		&f.Confidence, &vec, &f.ThumbnailURL, &f.OriginalImageURL,
		&f.Emotion, &f.EmotionConfidence, &f.SyncState, &f.VectorIndexID,
		&f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Embedding = vec.Slice()
	return f, nil
}

func collectFaces(rows pgx.Rows) ([]models.FaceRecord, error) {
	var out []models.FaceRecord
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face record: %w", err)
		}
		out = append(out, *f)
	}
	return out, nil
}
