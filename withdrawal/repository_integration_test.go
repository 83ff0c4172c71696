package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"escrowgate/test/infra"
)

// TestRepositoryWithPostgres spins up a throwaway Postgres container (or
// reuses TEST_PG_DSN) and exercises the full request lifecycle against a
// real schema. Set SKIP_CONTAINER_TESTS=1 to opt out on machines without
// Docker.
func TestRepositoryWithPostgres(t *testing.T) {
	if os.Getenv("SKIP_CONTAINER_TESTS") != "" {
		t.Skip("SKIP_CONTAINER_TESTS set; skipping container test")
	}
	if testing.Short() {
		t.Skip("short mode; skipping container test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgC, dsn, err := infra.StartPostgres16(ctx, "")
	if err != nil {
		t.Skipf("start postgres: %v", err)
	}
	defer pgC.Terminate(context.Background())

	pool, cleanup, err := infra.ApplyMigrations(ctx, dsn, true)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer cleanup(context.Background())
	defer pool.Close()

	repo := NewRepository(pool)
	userID := "vendor-9"

	// Three pending requests created in order; PendingByUser must return
	// them oldest first so settlement matches the earliest request.
	var ids []string
	for i, amount := range []float64{100, 250.50, 100} {
		req, err := repo.Create(ctx, Request{
			ID:     fmt.Sprintf("req-%d", i+1),
			UserID: userID,
			Amount: amount,
			Method: MethodTradeSafe,
			Status: StatusPending,
		})
		if err != nil {
			t.Fatalf("create request %d: %v", i+1, err)
		}
		if req.CreatedAt.IsZero() {
			t.Fatalf("request %d missing created_at", i+1)
		}
		ids = append(ids, req.ID)
	}

	pending, err := repo.PendingByUser(ctx, userID)
	if err != nil {
		t.Fatalf("pending by user: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	for i, req := range pending {
		if req.ID != ids[i] {
			t.Fatalf("pending[%d] = %s, want %s", i, req.ID, ids[i])
		}
	}

	if err := repo.UpdateStatus(ctx, ids[0], StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := repo.UpdateStatus(ctx, ids[1], StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	pending, err = repo.PendingByUser(ctx, userID)
	if err != nil {
		t.Fatalf("pending after settle: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("expected only %s pending, got %+v", ids[2], pending)
	}

	got, err := repo.GetByID(ctx, ids[0])
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Status != StatusApproved {
		t.Fatalf("expected approved, got %q", got.Status)
	}

	_, err = repo.GetByID(ctx, "req-missing")
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}
