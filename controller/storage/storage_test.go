package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateBucket("things"))
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)

	var created record
	err := s.Create("things", func(id string) interface{} {
		created = record{ID: id, Value: 42}
		return &created
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	var got record
	require.NoError(t, s.Get("things", created.ID, &got))
	assert.Equal(t, created, got)
}

func TestPutUpsertsFixedID(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("things", "default", &record{ID: "default", Value: 1}))
	require.NoError(t, s.Put("things", "default", &record{ID: "default", Value: 2}))

	var got record
	require.NoError(t, s.Get("things", "default", &got))
	assert.Equal(t, 2, got.Value)
}

func TestUpdateRequiresExistingRecord(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Update("things", "missing", &record{}))

	require.NoError(t, s.Put("things", "a", &record{ID: "a", Value: 1}))
	require.NoError(t, s.Update("things", "a", &record{ID: "a", Value: 9}))

	var got record
	require.NoError(t, s.Get("things", "a", &got))
	assert.Equal(t, 9, got.Value)
}

func TestDeleteAndList(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("things", "a", &record{ID: "a"}))
	require.NoError(t, s.Put("things", "b", &record{ID: "b"}))
	require.NoError(t, s.Delete("things", "a"))

	var ids []string
	require.NoError(t, s.List("things", func(id string, v []byte) error {
		ids = append(ids, id)
		return nil
	}))
	assert.Equal(t, []string{"b"}, ids)
}

func TestMissingBucket(t *testing.T) {
	s := openTestStore(t)
	var got record
	assert.Error(t, s.Get("nope", "a", &got))
	assert.Error(t, s.Put("nope", "a", &got))
	assert.Error(t, s.List("nope", func(string, []byte) error { return nil }))
}
