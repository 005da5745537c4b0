package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/gennadis/geminichatui/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	pushed []chat.Preferences
	err    error
}

func (f *fakeRemote) UpdatePreferences(_ context.Context, prefs chat.Preferences) error {
	f.pushed = append(f.pushed, prefs)
	return f.err
}

func newKV(t *testing.T) *storage.KV {
	t.Helper()
	db, err := storage.NewSqliteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	kv, err := storage.NewKV(db)
	require.NoError(t, err)
	return kv
}

func newTestStore(t *testing.T, loggedIn bool) (*Store, *fakeRemote, *storage.KV) {
	t.Helper()
	kv := newKV(t)
	remote := &fakeRemote{}
	s, err := NewStore(kv, remote, func() bool { return loggedIn })
	require.NoError(t, err)
	return s, remote, kv
}

func TestDefaults(t *testing.T) {
	s, _, _ := newTestStore(t, false)

	prefs := s.Preferences()
	assert.Equal(t, chat.ThemeLight, prefs.Theme)
	assert.Equal(t, 0.7, prefs.Temperature)
	assert.Equal(t, 1024, prefs.MaxTokens)
	assert.Equal(t, 0.9, prefs.TopP)
	assert.Empty(t, prefs.BackgroundImages)
	assert.Equal(t, -1, prefs.SelectedBackgroundImage)
}

func TestSaveSurvivesReload(t *testing.T) {
	s, remote, kv := newTestStore(t, false)
	ctx := context.Background()

	require.NoError(t, s.SetTheme(ctx, chat.ThemeDark))
	require.NoError(t, s.SetSampling(ctx, chat.Sampling{Temperature: 1.2, MaxTokens: 512, TopP: 0.5}))
	require.NoError(t, s.AddBackgroundImage(ctx, "http://img/1.png", "one"))
	require.NoError(t, s.SelectBackgroundImage(ctx, 0))
	assert.Empty(t, remote.pushed, "no push while logged out")

	reloaded, err := NewStore(kv, nil, nil)
	require.NoError(t, err)
	prefs := reloaded.Preferences()
	assert.Equal(t, chat.ThemeDark, prefs.Theme)
	assert.Equal(t, chat.Sampling{Temperature: 1.2, MaxTokens: 512, TopP: 0.5}, prefs.Sampling)
	assert.Equal(t, []chat.BackgroundImage{{URL: "http://img/1.png", Name: "one"}}, prefs.BackgroundImages)
	assert.Equal(t, 0, prefs.SelectedBackgroundImage)
}

func TestSavePushesWhenLoggedIn(t *testing.T) {
	s, remote, _ := newTestStore(t, true)

	require.NoError(t, s.SetTheme(context.Background(), chat.ThemeDark))
	require.Len(t, remote.pushed, 1)
	assert.Equal(t, chat.ThemeDark, remote.pushed[0].Theme)
}

func TestPushFailureKeepsLocalCopy(t *testing.T) {
	s, remote, _ := newTestStore(t, true)
	remote.err = errors.New("offline")

	require.NoError(t, s.SetTheme(context.Background(), chat.ThemeDark))
	assert.Equal(t, chat.ThemeDark, s.Preferences().Theme)
}

func TestLoadIgnoresInvalidEntries(t *testing.T) {
	kv := newKV(t)
	require.NoError(t, kv.Set(themeKey, "purple"))
	require.NoError(t, kv.Set(samplingKey, "{not json"))
	require.NoError(t, kv.Set(selectedImageKey, "3"))

	s, err := NewStore(kv, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultPreferences(), s.Preferences())
}

func TestLoadMergesPartialSampling(t *testing.T) {
	kv := newKV(t)
	require.NoError(t, kv.Set(samplingKey, `{"temperature":1.5}`))

	s, err := NewStore(kv, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, chat.Sampling{Temperature: 1.5, MaxTokens: 1024, TopP: 0.9}, s.Sampling())
}

func TestSetSamplingValidation(t *testing.T) {
	s, _, _ := newTestStore(t, false)
	ctx := context.Background()

	for _, bad := range []chat.Sampling{
		{Temperature: 2.5, MaxTokens: 10, TopP: 0.5},
		{Temperature: -0.1, MaxTokens: 10, TopP: 0.5},
		{Temperature: 1, MaxTokens: 0, TopP: 0.5},
		{Temperature: 1, MaxTokens: 9000, TopP: 0.5},
		{Temperature: 1, MaxTokens: 10, TopP: 1.5},
	} {
		err := s.SetSampling(ctx, bad)
		var verr *chat.ValidationError
		assert.ErrorAs(t, err, &verr, "%+v", bad)
	}
	assert.Equal(t, chat.DefaultSampling(), s.Sampling())
}

func TestSetThemeRejectsUnknown(t *testing.T) {
	s, _, _ := newTestStore(t, false)
	assert.Error(t, s.SetTheme(context.Background(), "sepia"))
}

func TestReset(t *testing.T) {
	s, _, kv := newTestStore(t, false)
	require.NoError(t, s.SetTheme(context.Background(), chat.ThemeDark))

	require.NoError(t, s.Reset())
	assert.Equal(t, chat.DefaultPreferences(), s.Preferences())

	_, ok, err := kv.Get(themeKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdoptDoesNotPush(t *testing.T) {
	s, remote, _ := newTestStore(t, true)

	require.NoError(t, s.Adopt(chat.Preferences{Theme: chat.ThemeDark, Sampling: chat.Sampling{Temperature: 0.3}}))
	prefs := s.Preferences()
	assert.Equal(t, chat.ThemeDark, prefs.Theme)
	assert.Equal(t, 0.3, prefs.Temperature)
	assert.Equal(t, 1024, prefs.MaxTokens)
	assert.Equal(t, -1, prefs.SelectedBackgroundImage)
	assert.Empty(t, remote.pushed)
}

func TestRemoveImage(t *testing.T) {
	imgs := []chat.BackgroundImage{{URL: "a"}, {URL: "b"}, {URL: "c"}, {URL: "d"}}

	tests := []struct {
		name     string
		selected int
		remove   int
		want     int
	}{
		{"selected removed", 2, 2, -1},
		{"selected after removed", 3, 1, 2},
		{"selected before removed", 0, 2, 0},
		{"no selection", -1, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, selected, err := RemoveImage(imgs, tt.selected, tt.remove)
			require.NoError(t, err)
			assert.Equal(t, tt.want, selected)
			assert.Len(t, out, len(imgs)-1)
			assert.NotContains(t, out, imgs[tt.remove])
			if tt.selected >= 0 && tt.selected != tt.remove {
				assert.Equal(t, imgs[tt.selected], out[selected], "selection follows its image")
			}
		})
	}
	assert.Len(t, imgs, 4, "input untouched")

	_, _, err := RemoveImage(imgs, 0, 4)
	assert.Error(t, err)
}

func TestRemoveBackgroundImagePersists(t *testing.T) {
	s, _, _ := newTestStore(t, false)
	ctx := context.Background()
	require.NoError(t, s.AddBackgroundImage(ctx, "a", "A"))
	require.NoError(t, s.AddBackgroundImage(ctx, "b", "B"))
	require.NoError(t, s.SelectBackgroundImage(ctx, 1))

	require.NoError(t, s.RemoveBackgroundImage(ctx, 0))
	prefs := s.Preferences()
	assert.Equal(t, []chat.BackgroundImage{{URL: "b", Name: "B"}}, prefs.BackgroundImages)
	assert.Equal(t, 0, prefs.SelectedBackgroundImage)
}
