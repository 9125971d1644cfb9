package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "datastore.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDJRoleRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	role, err := s.GetDJRole("g1")
	require.NoError(t, err)
	assert.Empty(t, role, "unset role reads as empty")

	require.NoError(t, s.SetDJRole("g1", "role-123"))
	role, err = s.GetDJRole("g1")
	require.NoError(t, err)
	assert.Equal(t, "role-123", role)

	// Clearing the role.
	require.NoError(t, s.SetDJRole("g1", ""))
	role, err = s.GetDJRole("g1")
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestDefaultVolume(t *testing.T) {
	s := newTestStorage(t)

	_, ok := s.DefaultVolume("g1")
	assert.False(t, ok, "no stored preference")

	require.NoError(t, s.SetDefaultVolume("g1", 80))
	v, ok := s.DefaultVolume("g1")
	assert.True(t, ok)
	assert.Equal(t, 80, v)
}

func TestUncacheDropsRecord(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SetDJRole("g1", "role-123"))
	s.Uncache("g1")

	role, err := s.GetDJRole("g1")
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestCommandHistoryCapped(t *testing.T) {
	s := newTestStorage(t)

	for i := 0; i < commandHistoryLimit+10; i++ {
		require.NoError(t, s.AppendCommandToHistory("g1", CommandHistoryRecord{
			Command:  "music",
			UserID:   "u1",
			Datetime: time.Now(),
		}))
	}

	history, err := s.FetchCommandHistory("g1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(history), commandHistoryLimit+1)
}

func TestSettingsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datastore.json")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SetDJRole("g1", "role-123"))
	require.NoError(t, s.SetDefaultVolume("g1", 65))
	require.NoError(t, s.Close())

	s2, err := New(path)
	require.NoError(t, err)
	defer s2.Close()

	role, err := s2.GetDJRole("g1")
	require.NoError(t, err)
	assert.Equal(t, "role-123", role)

	v, ok := s2.DefaultVolume("g1")
	assert.True(t, ok)
	assert.Equal(t, 65, v)
}
