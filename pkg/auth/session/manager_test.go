package session

import (
	"context"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	val, ok := f.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

type fakeKeyer struct{}

func (fakeKeyer) AccessSessionKey(accessID string) string {
	return "libris:session:access:" + accessID
}

func newTestManager() (*Manager, *fakeStore) {
	store := newFakeStore()
	return &Manager{store: store, keyer: fakeKeyer{}, ttl: time.Hour}, store
}

func TestGenerateStoresToken(t *testing.T) {
	mgr, store := newTestManager()
	accessID := NewAccessID()

	token, err := mgr.Generate(context.Background(), accessID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" {
		t.Fatal("expected token")
	}
	if store.values[fakeKeyer{}.AccessSessionKey(accessID)] != token {
		t.Fatal("token not stored under access key")
	}
}

func TestRotateInvalidatesOldSession(t *testing.T) {
	mgr, store := newTestManager()
	accessID := NewAccessID()

	token, err := mgr.Generate(context.Background(), accessID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	newAccessID, newToken, err := mgr.Rotate(context.Background(), accessID, token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if newAccessID == accessID || newToken == token {
		t.Fatal("rotation reused identifiers")
	}
	if _, ok := store.values[fakeKeyer{}.AccessSessionKey(accessID)]; ok {
		t.Fatal("old session still present")
	}

	// Second rotation with the consumed token must fail.
	if _, _, err := mgr.Rotate(context.Background(), accessID, token); err != ErrInvalidRefreshToken {
		t.Fatalf("err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRotateRejectsMismatchedToken(t *testing.T) {
	mgr, _ := newTestManager()
	accessID := NewAccessID()

	if _, err := mgr.Generate(context.Background(), accessID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, _, err := mgr.Rotate(context.Background(), accessID, "forged"); err != ErrInvalidRefreshToken {
		t.Fatalf("err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRevokeAndHasSession(t *testing.T) {
	mgr, _ := newTestManager()
	accessID := NewAccessID()

	if _, err := mgr.Generate(context.Background(), accessID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	ok, err := mgr.HasSession(context.Background(), accessID)
	if err != nil || !ok {
		t.Fatalf("HasSession = %v, %v", ok, err)
	}

	if err := mgr.Revoke(context.Background(), accessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = mgr.HasSession(context.Background(), accessID)
	if err != nil {
		t.Fatalf("HasSession after revoke: %v", err)
	}
	if ok {
		t.Fatal("session survived revoke")
	}
}
