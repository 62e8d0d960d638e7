// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package history

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateGeneratesID(t *testing.T) {
	s := newTestStore(t)

	r := &Record{Input: "/videos/a.mkv", Output: "/videos/a.mp4", InputBytes: 3 << 20}
	require.NoError(t, s.Create(r))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, StateRunning, r.State)
	assert.False(t, r.StartedAt.IsZero())

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "/videos/a.mkv", got.Input)
	assert.Equal(t, int64(3<<20), got.InputBytes)
	assert.Nil(t, got.FinishedAt)
}

func TestCreateRejects(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.Create(&Record{Input: "a.mkv"}), ErrInvalidInput)

	require.NoError(t, s.Create(&Record{ID: "job1", Input: "a.mkv", Output: "a.mp4"}))
	assert.ErrorIs(t, s.Create(&Record{ID: "job1", Input: "b.mkv", Output: "b.mp4"}), ErrRecordExists)
}

func TestProgressAndFinish(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Create(&Record{ID: "ok", Input: "a.mkv", Output: "a.mp4"}))
	require.NoError(t, s.Progress("ok", 42))

	r, err := s.Get("ok")
	require.NoError(t, err)
	assert.Equal(t, 42, r.LastPercent)

	require.NoError(t, s.Finish("ok", nil))
	r, err = s.Get("ok")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, r.State)
	assert.Equal(t, 100, r.LastPercent)
	assert.NotNil(t, r.FinishedAt)

	assert.ErrorIs(t, s.Progress("ok", 50), ErrNotFound, "finished runs take no progress")

	require.NoError(t, s.Create(&Record{ID: "bad", Input: "b.mkv", Output: "b.mp4"}))
	require.NoError(t, s.Progress("bad", 10))
	require.NoError(t, s.Finish("bad", errors.New("failed")))
	r, err = s.Get("bad")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, r.State)
	assert.Equal(t, "failed", r.Reason)
	assert.Equal(t, 10, r.LastPercent)
}

func TestMissingRecord(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Finish("nope", nil), ErrNotFound)
	assert.ErrorIs(t, s.Progress("nope", 1), ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.Create(&Record{
			ID:        id,
			Input:     id + ".mkv",
			Output:    id + ".mp4",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].ID)
	assert.Equal(t, "first", all[2].ID)

	two, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}
