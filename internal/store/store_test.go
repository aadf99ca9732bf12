package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *StoreCtx {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, PlayerInput{
		Name:         " News ",
		PID:          "news",
		URL:          "https://cdn.example/news/index.m3u8?token=abc",
		Announcement: "Maintenance at 22:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "News", created.Name)
	assert.False(t, created.HasCover)
	assert.False(t, created.CreatedAt.IsZero())

	byID, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byPID, err := s.GetByPID(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byPID.ID)
	assert.Equal(t, "Maintenance at 22:00", byPID.Announcement)
	assert.Empty(t, byPID.Description)
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   PlayerInput
		wantErr error
	}{
		{
			name:    "missing name",
			input:   PlayerInput{PID: "a", URL: "http://a"},
			wantErr: ErrInvalid,
		},
		{
			name:    "missing pid",
			input:   PlayerInput{Name: "A", URL: "http://a"},
			wantErr: ErrInvalid,
		},
		{
			name:    "blank url",
			input:   PlayerInput{Name: "A", PID: "a", URL: "   "},
			wantErr: ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDuplicatePID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, PlayerInput{Name: "One", PID: "one", URL: "http://a/one.m3u8"})
	require.NoError(t, err)
	second, err := s.Create(ctx, PlayerInput{Name: "Two", PID: "two", URL: "http://a/two.m3u8"})
	require.NoError(t, err)

	_, err = s.Create(ctx, PlayerInput{Name: "Again", PID: "one", URL: "http://a/x.m3u8"})
	assert.ErrorIs(t, err, ErrDuplicatePID)

	_, err = s.Update(ctx, second.ID, PlayerInput{Name: "Two", PID: "one", URL: "http://a/two.m3u8"})
	assert.ErrorIs(t, err, ErrDuplicatePID)

	// keeping own pid is allowed
	updated, err := s.Update(ctx, first.ID, PlayerInput{Name: "One!", PID: "one", URL: "http://a/one.m3u8"})
	require.NoError(t, err)
	assert.Equal(t, "One!", updated.Name)
}

func TestListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, PlayerInput{Name: "First", PID: "first", URL: "http://a/1.m3u8"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.Create(ctx, PlayerInput{Name: "Second", PID: "second", URL: "http://a/2.m3u8"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	// touching first moves it to the top
	_, err = s.Update(ctx, first.ID, PlayerInput{Name: "First", PID: "first", URL: "http://a/1b.m3u8"})
	require.NoError(t, err)

	players, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "first", players[0].PID)
	assert.Equal(t, "second", players[1].PID)
}

func TestCover(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	player, err := s.Create(ctx, PlayerInput{Name: "News", PID: "news", URL: "http://a/news.m3u8"})
	require.NoError(t, err)

	_, err = s.GetCover(ctx, player.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	image := []byte{0xff, 0xd8, 0xff, 0xe0}
	require.NoError(t, s.SetCover(ctx, player.ID, image))

	got, err := s.GetCover(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, image, got)

	player, err = s.Get(ctx, player.ID)
	require.NoError(t, err)
	assert.True(t, player.HasCover)
	assert.Nil(t, player.CoverImage)

	players, err := s.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, image, players[0].CoverImage)

	assert.ErrorIs(t, s.SetCover(ctx, 999, image), ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	player, err := s.Create(ctx, PlayerInput{Name: "News", PID: "news", URL: "http://a/news.m3u8"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, player.ID))
	assert.ErrorIs(t, s.Delete(ctx, player.ID), ErrNotFound)

	_, err = s.Get(ctx, player.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByPID(ctx, "news")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	player, created, err := s.Upsert(ctx, PlayerInput{Name: "News", PID: "news", URL: "http://a/news.m3u8"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.Upsert(ctx, PlayerInput{Name: "News HD", PID: "news", URL: "http://a/news-hd.m3u8"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, player.ID, again.ID)
	assert.Equal(t, "http://a/news-hd.m3u8", again.URL)
}
