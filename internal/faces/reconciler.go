package faces

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/auth"
	"github.com/your-org/lineage/internal/models"
	"github.com/your-org/lineage/internal/observability"
	"github.com/your-org/lineage/internal/vectorindex"
)

// EventReconciled is published once per completed reconciliation run.
const EventReconciled = "faces.reconciled"

// ReconcileResult summarizes one reconciliation run. Per-record failures are
// reported here, never as an overall error.
type ReconcileResult struct {
	FamilyID *uuid.UUID `json:"family_id,omitempty"`
	Synced   int        `json:"synced"`
	Failed   int        `json:"failed"`
	Skipped  int        `json:"skipped"`
}

// Reconciler re-derives the vector index projection from the relational
// store for one family, or for everything in administrative mode.
type Reconciler struct {
	store   Store
	index   vectorindex.Client
	indexer *Indexer
	authz   auth.FamilyAuthorizer
	events  Publisher
}

func NewReconciler(store Store, index vectorindex.Client, indexer *Indexer, authz auth.FamilyAuthorizer, events Publisher) *Reconciler {
	return &Reconciler{store: store, index: index, indexer: indexer, authz: authz, events: events}
}

// ReconcileFamily deletes the family's stale index entries, then re-indexes
// every local face record sequentially in storage order. One record's
// failure never prevents the rest from being attempted and never rolls back
// earlier successes. With familyID nil every face record is reconciled,
// which requires an administrator; the per-family variant also accepts a
// manager of that family.
func (r *Reconciler) ReconcileFamily(ctx context.Context, p auth.Principal, familyID *uuid.UUID) (*ReconcileResult, error) {
	if familyID == nil {
		if !p.Admin {
			return nil, fmt.Errorf("%w: full reconciliation requires an administrator", ErrForbidden)
		}
	} else {
		ok, err := r.authz.CanManage(ctx, p, *familyID)
		if err != nil {
			return nil, fmt.Errorf("authorize reconciliation: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: family %s", ErrForbidden, *familyID)
		}
	}

	start := time.Now()
	var records []models.FaceRecord
	var err error

	if familyID != nil {
		family, err := r.store.GetFamily(ctx, *familyID)
		if err != nil {
			return nil, fmt.Errorf("load family %s: %w", *familyID, err)
		}
		if family == nil {
			return nil, fmt.Errorf("%w: family %s", ErrNotFound, *familyID)
		}

		// Old entries are swept first so orphaned vectors from deleted
		// records disappear. A failed sweep only delays that cleanup; the
		// upserts below still converge the index.
		if err := r.index.DeleteByFamily(ctx, *familyID); err != nil {
			slog.Warn("reconcile: delete family index entries", "family_id", *familyID, "error", err)
		} else {
			slog.Info("reconcile: cleared family index entries", "family_id", *familyID)
		}

		records, err = r.store.ListFacesByFamily(ctx, *familyID)
		if err != nil {
			return nil, fmt.Errorf("list faces for family %s: %w", *familyID, err)
		}
	} else {
		records, err = r.store.ListAllFaces(ctx)
		if err != nil {
			return nil, fmt.Errorf("list all faces: %w", err)
		}
	}

	result := &ReconcileResult{FamilyID: familyID}
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reconciliation cancelled: %w", err)
		}
		face := &records[i]
		switch err := r.indexer.IndexOne(ctx, face); {
		case err == nil:
			result.Synced++
		case errors.Is(err, ErrNotFound):
			result.Skipped++
			slog.Warn("reconcile: skipping face without resolvable member",
				"face_id", face.ID, "member_id", face.MemberID)
		default:
			result.Failed++
			slog.Warn("reconcile: face indexing failed", "face_id", face.ID, "error", err)
		}
	}

	observability.ReconcileRuns.WithLabelValues(modeLabel(familyID)).Inc()
	observability.ReconcileDuration.Observe(time.Since(start).Seconds())
	slog.Info("reconciliation finished",
		"mode", modeLabel(familyID),
		"synced", result.Synced, "failed", result.Failed, "skipped", result.Skipped,
		"duration", time.Since(start).String())

	if r.events != nil {
		if err := r.events.PublishFaceEvent(ctx, EventReconciled, result); err != nil {
			slog.Warn("publish reconcile event", "error", err)
		}
	}
	return result, nil
}

func modeLabel(familyID *uuid.UUID) string {
	if familyID == nil {
		return "all"
	}
	return "family"
}
