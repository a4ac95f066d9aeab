package mapdoc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/mapforge/internal/apperr"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func sequentialIDs() func(string) string {
	n := 0
	return func(prefix string) string {
		n++
		return fmt.Sprintf("%s_%d", prefix, n)
	}
}

// newTestEditor returns an editor holding an empty map "m1" with the default
// layer active.
func newTestEditor(t *testing.T, p Persistence, opts ...Option) *Editor {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithIDFunc(sequentialIDs())}, opts...)
	e := New(p, opts...)
	require.NoError(t, e.Assign("m1", &Document{MapInfo: MapInfo{Name: "Test map"}}))
	require.NotEmpty(t, e.ActiveLayerID())
	return e
}

type memStore struct {
	docs   map[string][]byte
	saves  int
	err    error
	onSave func()
}

func newMemStore() *memStore {
	return &memStore{docs: map[string][]byte{}}
}

func (m *memStore) Load(_ context.Context, mapID string) ([]byte, error) {
	data, ok := m.docs[mapID]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", mapID, apperr.ErrNotFound)
	}
	return data, nil
}

func (m *memStore) Save(_ context.Context, mapID string, data []byte) error {
	if m.onSave != nil {
		m.onSave()
	}
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.docs[mapID] = data
	return nil
}
