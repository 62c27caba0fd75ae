package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRefreshSwapSingleUse(t *testing.T) {
	t.Parallel()

	store := NewRefreshTokenStore()
	ctx := context.Background()
	principal := uuid.New()
	expiry := time.Now().UTC().Add(time.Hour)

	if err := store.Replace(ctx, principal, "hash-1", expiry); err != nil {
		t.Fatalf("replace: %v", err)
	}

	swapped, err := store.Swap(ctx, principal, "hash-1", "hash-2", expiry)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !swapped {
		t.Fatalf("first swap of the current hash must succeed")
	}

	// Replaying the superseded hash must fail: rotation is single-use.
	swapped, err = store.Swap(ctx, principal, "hash-1", "hash-3", expiry)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if swapped {
		t.Fatalf("superseded hash must never swap again")
	}

	swapped, err = store.Swap(ctx, principal, "hash-2", "hash-3", expiry)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !swapped {
		t.Fatalf("the new current hash must swap")
	}
}

func TestRefreshSwapExpiredEntry(t *testing.T) {
	t.Parallel()

	store := NewRefreshTokenStore()
	ctx := context.Background()
	principal := uuid.New()

	if err := store.Replace(ctx, principal, "hash-1", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	swapped, err := store.Swap(ctx, principal, "hash-1", "hash-2", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if swapped {
		t.Fatalf("expired entry must not swap")
	}
}

func TestRefreshRevoke(t *testing.T) {
	t.Parallel()

	store := NewRefreshTokenStore()
	ctx := context.Background()
	principal := uuid.New()
	expiry := time.Now().UTC().Add(time.Hour)

	store.Replace(ctx, principal, "hash-1", expiry)
	if err := store.Revoke(ctx, principal); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	swapped, err := store.Swap(ctx, principal, "hash-1", "hash-2", expiry)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if swapped {
		t.Fatalf("revoked principal must have no swappable token")
	}
}
