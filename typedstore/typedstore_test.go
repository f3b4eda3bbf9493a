package typedstore

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sealedkv/kverrors"
	"github.com/cuemby/sealedkv/store"
)

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newStorage(t *testing.T) *store.Storage {
	t.Helper()
	s, err := store.New(store.Config{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newStorage(t)

	want := widget{Name: "bolt", Count: 3}
	require.NoError(t, Set(s, "w1", want, nil))

	got, err := Get[widget](s, "w1")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestGetMissingKey(t *testing.T) {
	s := newStorage(t)

	_, err := Get[widget](s, "absent")
	assert.True(t, kverrors.Is(err, kverrors.NotFound))
}

func TestUpdatePatchesFields(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, Set(s, "w1", widget{Name: "bolt", Count: 3}, nil))

	patch := map[string]json.RawMessage{"count": json.RawMessage("7")}
	updated, err := Update[widget](s, "w1", patch, nil)
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "bolt", Count: 7}, updated)

	got, err := Get[widget](s, "w1")
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "bolt", Count: 7}, *got)
}

func TestUpdateWithinTransactionIsAtomic(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, Set(s, "w1", widget{Name: "bolt", Count: 1}, nil))

	h, err := s.BeginTransaction()
	require.NoError(t, err)

	patch := map[string]json.RawMessage{"count": json.RawMessage("9")}
	_, err = Update[widget](s, "w1", patch, &h)
	require.NoError(t, err)

	// Uncommitted: outside reads still observe the pre-update value.
	got, err := Get[widget](s, "w1")
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "bolt", Count: 1}, *got)

	require.NoError(t, s.CommitTransaction(h))

	got, err = Get[widget](s, "w1")
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "bolt", Count: 9}, *got)
}
