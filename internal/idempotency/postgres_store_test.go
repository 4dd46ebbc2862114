package idempotency

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestPostgresStoreLifecycle(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	key := ScopedKey("0xabc", "POST", "/api/v1/employee/savings", "pg-test")
	rec := Record{
		StatusCode:  200,
		Response:    []byte("payload"),
		Fingerprint: Fingerprint([]byte("body")),
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   time.Now().Add(time.Minute).UTC(),
	}

	if err := store.Save(ctx, key, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.StatusCode != rec.StatusCode || got.Fingerprint != rec.Fingerprint {
		t.Fatalf("unexpected record: %#v", got)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	reserveKey := key + "-reserve"
	_ = store.Release(ctx, reserveKey)
	pending := Reservation(rec.Fingerprint, time.Now().UTC(), time.Minute)
	if ok, err := store.Reserve(ctx, reserveKey, pending); err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	if ok, err := store.Reserve(ctx, reserveKey, pending); err != nil || ok {
		t.Fatalf("second reserve should lose: ok=%v err=%v", ok, err)
	}
	if err := store.Release(ctx, reserveKey); err != nil {
		t.Fatalf("release: %v", err)
	}

	if _, err := store.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}
}
