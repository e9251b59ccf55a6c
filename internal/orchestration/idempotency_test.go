package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/motorent/rentord/model"
)

func isConflict(err error) bool {
	var envelope *model.ErrorEnvelope
	return errors.As(err, &envelope) && envelope.Code == model.ErrConflict
}

func TestMemoryIdempotencyStore_CheckAndStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore()
	key := FormatIdempotencyKey("activate_contract", "req-1")
	hash := HashInput(model.ActivateContractRequest{ContractID: "c1"})

	if _, found, err := store.Check(ctx, key, hash); err != nil || found {
		t.Fatalf("Check on empty store = found %v, err %v", found, err)
	}

	result := model.OrchestrationResult{Success: true, SagaID: "saga-1"}
	if err := store.Store(ctx, key, hash, result, time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	cached, found, err := store.Check(ctx, key, hash)
	if err != nil || !found {
		t.Fatalf("Check after store = found %v, err %v", found, err)
	}
	if cached.SagaID != "saga-1" || !cached.Success {
		t.Errorf("cached result = %+v", cached)
	}
}

func TestMemoryIdempotencyStore_HashMismatchConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore()
	key := FormatIdempotencyKey("activate_contract", "req-1")

	if err := store.Store(ctx, key, "hash-a", model.OrchestrationResult{Success: true}, time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	_, found, err := store.Check(ctx, key, "hash-b")
	if !found {
		t.Fatal("key not found")
	}
	if !isConflict(err) {
		t.Errorf("error = %v, want CONFLICT", err)
	}
}

func TestMemoryIdempotencyStore_ExpiredEntryIsEvicted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore()
	key := FormatIdempotencyKey("process_payment", "req-2")

	if err := store.Store(ctx, key, "h", model.OrchestrationResult{Success: true}, -time.Second); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, found, err := store.Check(ctx, key, "h"); err != nil || found {
		t.Errorf("expired entry still found (err %v)", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d after eviction, want 0", store.Len())
	}
}

func TestRedisIdempotencyStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStore(client)

	ctx := context.Background()
	key := FormatIdempotencyKey("process_payment", "req-3")
	result := model.OrchestrationResult{
		Success:         false,
		SagaID:          "saga-9",
		Error:           "payment 250.00 exceeds outstanding 100.00",
		RolledBackSteps: []string{"create_payment"},
	}

	if _, found, err := store.Check(ctx, key, "h1"); err != nil || found {
		t.Fatalf("Check on empty redis = found %v, err %v", found, err)
	}

	if err := store.Store(ctx, key, "h1", result, time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	cached, found, err := store.Check(ctx, key, "h1")
	if err != nil || !found {
		t.Fatalf("Check after store = found %v, err %v", found, err)
	}
	if cached.Error != result.Error || len(cached.RolledBackSteps) != 1 {
		t.Errorf("cached result = %+v", cached)
	}

	// Same key, different input.
	if _, _, err := store.Check(ctx, key, "h2"); !isConflict(err) {
		t.Errorf("hash mismatch error = %v, want CONFLICT", err)
	}

	// TTL expiry.
	mr.FastForward(2 * time.Minute)
	if _, found, _ := store.Check(ctx, key, "h1"); found {
		t.Error("entry survived TTL expiry")
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestHashInput_StableAndDistinct(t *testing.T) {
	a := HashInput(model.ProcessPaymentRequest{InvoiceID: "inv-1", Amount: 40})
	b := HashInput(model.ProcessPaymentRequest{InvoiceID: "inv-1", Amount: 40})
	c := HashInput(model.ProcessPaymentRequest{InvoiceID: "inv-1", Amount: 41})

	if a == "" || a != b {
		t.Errorf("hash not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Error("distinct inputs hashed identically")
	}
}
