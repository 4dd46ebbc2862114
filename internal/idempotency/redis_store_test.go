package idempotency

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestRedisStoreLifecycle(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewRedisStore(ctx, addr)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	key := ScopedKey("0xabc", "POST", "/api/v1/employee/invest", "redis-test")
	rec := Record{
		StatusCode: 200,
		Response:   []byte("payload"),
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  time.Now().Add(time.Minute).UTC(),
	}
	if err := store.Save(ctx, key, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || string(got.Response) != "payload" {
		t.Fatalf("unexpected record: %#v", got)
	}

	// already expired records are not written
	if err := store.Save(ctx, key+"-stale", Record{ExpiresAt: time.Now().Add(-time.Second)}); err != nil {
		t.Fatalf("save stale: %v", err)
	}
	if got, _ := store.Get(ctx, key+"-stale"); got != nil {
		t.Fatalf("stale record stored: %#v", got)
	}

	reserveKey := key + "-reserve"
	_ = store.Release(ctx, reserveKey)
	pending := Reservation("", time.Now(), time.Minute)
	if ok, err := store.Reserve(ctx, reserveKey, pending); err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	if ok, err := store.Reserve(ctx, reserveKey, pending); err != nil || ok {
		t.Fatalf("second reserve should lose: ok=%v err=%v", ok, err)
	}
	if err := store.Release(ctx, reserveKey); err != nil {
		t.Fatalf("release: %v", err)
	}
}
