package preference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wabenzi/prethrift/internal/domain"
	dompref "github.com/wabenzi/prethrift/internal/domain/preference"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	hsetFn    func(ctx context.Context, key string, fields map[string]string) error
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func TestGet_EmptyUserGetsEmptyVector(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "prethrift:pref:u-1" {
			t.Errorf("key = %q", key)
		}
		return map[string]string{}, nil
	}

	v, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.UserID() != "u-1" {
		t.Errorf("UserID = %q", v.UserID())
	}
	if v.Len() != 0 {
		t.Errorf("Len = %d, want 0", v.Len())
	}
}

func TestGet_StoreErrorIsPreferenceUnavailable(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return nil, errors.New("connection refused")
	}

	_, err := repo.Get(context.Background(), "u-1")
	if !errors.Is(err, domain.ErrPreferenceUnavailable) {
		t.Fatalf("err = %v, want ErrPreferenceUnavailable", err)
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	now := time.Unix(1756000000, 0)

	v := dompref.New("u-1")
	v.Apply("color_primary:blue", 0.18, 3, now)
	v.Apply("category:jacket", -0.2, 3, now)

	var stored map[string]string
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		if key != "prethrift:pref:u-1" {
			t.Errorf("key = %q", key)
		}
		stored = fields
		return nil
	}

	if err := repo.Put(context.Background(), &v); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if stored[fieldMaxAbs] != "0.2" {
		t.Errorf("__max_abs = %q, want 0.2", stored[fieldMaxAbs])
	}
	if stored[fieldUpdatedAt] != "1756000000" {
		t.Errorf("__updated_at = %q", stored[fieldUpdatedAt])
	}

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return stored, nil
	}

	got, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Weight("color_primary:blue") != 0.18 {
		t.Errorf("blue weight = %g", got.Weight("color_primary:blue"))
	}
	if got.Weight("category:jacket") != -0.2 {
		t.Errorf("jacket weight = %g", got.Weight("category:jacket"))
	}
	if got.MaxAbs() != 0.2 {
		t.Errorf("MaxAbs = %g", got.MaxAbs())
	}
	if !got.UpdatedAt().Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt(), now)
	}
}

func TestGet_SkipsUnparsableWeights(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{
			"color_primary:blue": "0.4",
			"category:jacket":    "not-a-number",
			fieldMaxAbs:          "0.4",
			fieldUpdatedAt:       "1756000000",
		}, nil
	}

	got, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Len() != 1 {
		t.Errorf("Len = %d, want 1", got.Len())
	}
	if got.Weight("color_primary:blue") != 0.4 {
		t.Errorf("blue weight = %g", got.Weight("color_primary:blue"))
	}
}

func TestPut_StoreErrorIsPreferenceUnavailable(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.hsetFn = func(_ context.Context, _ string, _ map[string]string) error {
		return errors.New("readonly replica")
	}

	v := dompref.New("u-1")
	err := repo.Put(context.Background(), &v)
	if !errors.Is(err, domain.ErrPreferenceUnavailable) {
		t.Fatalf("err = %v, want ErrPreferenceUnavailable", err)
	}
}
