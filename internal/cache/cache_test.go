package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client, err := Open(context.Background(), Options{Addr: srv.Addr()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestRevokerExpiresWithToken(t *testing.T) {
	srv, client := newTestClient(t)
	revoker := NewRevoker(client)
	ctx := context.Background()

	if err := revoker.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := revoker.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v err=%v", revoked, err)
	}
	if other, _ := revoker.IsRevoked(ctx, "jti-2"); other {
		t.Fatal("unrelated id must not be revoked")
	}

	srv.FastForward(2 * time.Hour)
	if revoked, _ := revoker.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatal("entry should expire with the token")
	}
}

func TestRevokeAlreadyExpiredIsNoop(t *testing.T) {
	srv, client := newTestClient(t)
	if err := NewRevoker(client).Revoke(context.Background(), "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if srv.Exists(revokedPrefix + "old") {
		t.Fatal("expired tokens need no entry")
	}
}

func TestLockerExcludesSecondHolder(t *testing.T) {
	srv, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "reminders", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := locker.Acquire(ctx, "reminders", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if srv.Exists("lock:reminders") {
		t.Fatal("release should delete the key")
	}
	again, err := locker.Acquire(ctx, "reminders", time.Minute)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = again(ctx)
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	srv, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "job", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	srv.FastForward(2 * time.Second)
	other, err := locker.Acquire(ctx, "job", time.Minute)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !srv.Exists("lock:job") {
		t.Fatal("stale release must not delete the new holder's lock")
	}
	_ = other(ctx)
}
