package stores

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testRecord(code string, ttl time.Duration) *TokenRecord {
	return &TokenRecord{
		UserID:        "u1",
		DestinationID: "d1",
		CodeHash:      sha256.Sum256([]byte(code)),
		ExpiresAt:     time.Now().Add(ttl).Unix(),
	}
}

func TestTokenConsumeMatch(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewTokenStore(rdb, "t:")

	if err := store.Save(ctx, "tok1", testRecord("123456", time.Minute), time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	record, err := store.Consume(ctx, "tok1", sha256.Sum256([]byte("123456")), 3)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if record.UserID != "u1" || record.DestinationID != "d1" {
		t.Fatalf("unexpected record %+v", record)
	}

	// One-shot: a second consume finds nothing.
	if _, err := store.Consume(ctx, "tok1", sha256.Sum256([]byte("123456")), 3); err == nil {
		t.Fatal("expected an error on re-consume")
	}
}

func TestTokenConsumeMismatchCountsAttempts(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewTokenStore(rdb, "t:")

	if err := store.Save(ctx, "tok1", testRecord("123456", time.Minute), time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	wrong := sha256.Sum256([]byte("000000"))
	if _, err := store.Consume(ctx, "tok1", wrong, 3); err != ErrTokenCodeMismatch {
		t.Fatalf("expected ErrTokenCodeMismatch, got %v", err)
	}
	if _, err := store.Consume(ctx, "tok1", wrong, 3); err != ErrTokenCodeMismatch {
		t.Fatalf("expected ErrTokenCodeMismatch, got %v", err)
	}
	if _, err := store.Consume(ctx, "tok1", wrong, 3); err != ErrTokenAttemptsExceeded {
		t.Fatalf("expected ErrTokenAttemptsExceeded, got %v", err)
	}

	// Exhaustion deletes the record; the right code no longer works.
	if _, err := store.Consume(ctx, "tok1", sha256.Sum256([]byte("123456")), 3); err == nil {
		t.Fatal("expected an error after exhaustion")
	}
}

func TestTokenConsumeRightCodeAfterMismatch(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewTokenStore(rdb, "t:")

	if err := store.Save(ctx, "tok1", testRecord("123456", time.Minute), time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Consume(ctx, "tok1", sha256.Sum256([]byte("000000")), 3); err != ErrTokenCodeMismatch {
		t.Fatalf("expected ErrTokenCodeMismatch, got %v", err)
	}
	if _, err := store.Consume(ctx, "tok1", sha256.Sum256([]byte("123456")), 3); err != nil {
		t.Fatalf("right code after a mismatch failed: %v", err)
	}
}

func TestTokenConsumeExpired(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewTokenStore(rdb, "t:")

	record := testRecord("123456", -time.Second)
	if err := store.Save(ctx, "tok1", record, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Consume(ctx, "tok1", sha256.Sum256([]byte("123456")), 3); err != ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound for an expired record, got %v", err)
	}
}

func TestTokenGetAndDelete(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewTokenStore(rdb, "t:")

	if _, err := store.Get(ctx, "missing"); err != ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	if err := store.Save(ctx, "tok1", testRecord("123456", time.Minute), time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	record, err := store.Get(ctx, "tok1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.UserID != "u1" {
		t.Fatalf("unexpected record %+v", record)
	}

	if err := store.Delete(ctx, "tok1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "tok1"); err != ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound after delete, got %v", err)
	}
}

func TestTokenRecordCodec(t *testing.T) {
	record := &TokenRecord{
		UserID:        "user-with-a-long-id",
		DestinationID: "dest-9",
		CodeHash:      sha256.Sum256([]byte("987654")),
		ExpiresAt:     time.Now().Add(time.Hour).Unix(),
		Attempts:      2,
	}

	encoded, err := encodeTokenRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := decodeTokenRecord(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if *decoded != *record {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, record)
	}

	if _, err := decodeTokenRecord([]byte{99}); err == nil {
		t.Fatal("expected an error for an unknown version")
	}
	if _, err := decodeTokenRecord(encoded[:10]); err == nil {
		t.Fatal("expected an error for a truncated record")
	}
}
