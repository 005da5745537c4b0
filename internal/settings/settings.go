// Package settings keeps user preferences in local storage and pushes them to the
// backend opportunistically. Whichever copy was written last wins.
package settings

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/samber/lo"
)

const (
	themeKey            = "theme"
	samplingKey         = "samplingParams"
	backgroundImagesKey = "backgroundImages"
	selectedImageKey    = "selectedBackgroundImage"

	MaxTemperature = 2.0
	MaxTokensLimit = 8192
)

var persistedKeys = []string{themeKey, samplingKey, backgroundImagesKey, selectedImageKey}

type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
	GetJSON(key string, v any) (bool, error)
	SetJSON(key string, v any) error
}

// Remote receives preference pushes.
type Remote interface {
	UpdatePreferences(ctx context.Context, prefs chat.Preferences) error
}

type Store struct {
	kv       KV
	remote   Remote
	loggedIn func() bool

	mu    sync.Mutex
	prefs chat.Preferences
}

// NewStore loads persisted preferences over the defaults.
func NewStore(kv KV, remote Remote, loggedIn func() bool) (*Store, error) {
	s := &Store{kv: kv, remote: remote, loggedIn: loggedIn, prefs: chat.DefaultPreferences()}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load merges the persisted copy over the defaults. Unreadable entries fall back to defaults.
func (s *Store) Load() (chat.Preferences, error) {
	prefs := chat.DefaultPreferences()

	theme, ok, err := s.kv.Get(themeKey)
	if err != nil {
		return prefs, err
	}
	if ok && validTheme(chat.Theme(theme)) {
		prefs.Theme = chat.Theme(theme)
	}

	sampling := prefs.Sampling
	if _, err := s.kv.GetJSON(samplingKey, &sampling); err != nil {
		slog.Warn("Ignoring unreadable sampling parameters", "error", err)
	} else if validateSampling(sampling) == nil {
		prefs.Sampling = sampling
	}

	var images []chat.BackgroundImage
	if _, err := s.kv.GetJSON(backgroundImagesKey, &images); err != nil {
		slog.Warn("Ignoring unreadable background images", "error", err)
	} else if images != nil {
		prefs.BackgroundImages = images
	}

	if raw, ok, err := s.kv.Get(selectedImageKey); err != nil {
		return prefs, err
	} else if ok {
		if i, err := strconv.Atoi(raw); err == nil && i >= 0 && i < len(prefs.BackgroundImages) {
			prefs.SelectedBackgroundImage = i
		}
	}

	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return clonePrefs(prefs), nil
}

func (s *Store) Preferences() chat.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePrefs(s.prefs)
}

func (s *Store) Sampling() chat.Sampling {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Sampling
}

// Save persists prefs locally, then pushes them to the backend best-effort.
func (s *Store) Save(ctx context.Context, prefs chat.Preferences) error {
	prefs = normalize(prefs)
	if err := s.persist(prefs); err != nil {
		return err
	}

	if s.remote == nil || s.loggedIn == nil || !s.loggedIn() {
		return nil
	}
	if err := s.remote.UpdatePreferences(ctx, prefs); err != nil {
		slog.Warn("Failed to push preferences to backend", "error", err)
	}
	return nil
}

// Adopt overwrites the local copy with the server copy without pushing it back.
func (s *Store) Adopt(remote chat.Preferences) error {
	return s.persist(normalize(remote))
}

// Reset clears the persisted copy and reverts to defaults.
func (s *Store) Reset() error {
	if err := s.kv.Delete(persistedKeys...); err != nil {
		return err
	}
	s.mu.Lock()
	s.prefs = chat.DefaultPreferences()
	s.mu.Unlock()
	return nil
}

func (s *Store) SetTheme(ctx context.Context, theme chat.Theme) error {
	if !validTheme(theme) {
		return chat.Invalid("theme", "must be %q or %q", chat.ThemeLight, chat.ThemeDark)
	}
	prefs := s.Preferences()
	prefs.Theme = theme
	return s.Save(ctx, prefs)
}

func (s *Store) SetSampling(ctx context.Context, sampling chat.Sampling) error {
	if err := validateSampling(sampling); err != nil {
		return err
	}
	prefs := s.Preferences()
	prefs.Sampling = sampling
	return s.Save(ctx, prefs)
}

func (s *Store) AddBackgroundImage(ctx context.Context, url, name string) error {
	if url == "" {
		return chat.Invalid("url", "must not be empty")
	}
	prefs := s.Preferences()
	prefs.BackgroundImages = append(prefs.BackgroundImages, chat.BackgroundImage{URL: url, Name: name})
	return s.Save(ctx, prefs)
}

// RemoveBackgroundImage deletes entry i; later entries shift down by one and the
// selection follows the entry it pointed at.
func (s *Store) RemoveBackgroundImage(ctx context.Context, i int) error {
	prefs := s.Preferences()
	images, selected, err := RemoveImage(prefs.BackgroundImages, prefs.SelectedBackgroundImage, i)
	if err != nil {
		return err
	}
	prefs.BackgroundImages = images
	prefs.SelectedBackgroundImage = selected
	return s.Save(ctx, prefs)
}

// SelectBackgroundImage selects entry i; -1 clears the selection.
func (s *Store) SelectBackgroundImage(ctx context.Context, i int) error {
	prefs := s.Preferences()
	if i < -1 || i >= len(prefs.BackgroundImages) {
		return chat.Invalid("index", "must be between 0 and %d", len(prefs.BackgroundImages)-1)
	}
	prefs.SelectedBackgroundImage = i
	return s.Save(ctx, prefs)
}

// RemoveImage returns images without entry i, in original order, and the re-indexed selection.
func RemoveImage(images []chat.BackgroundImage, selected, i int) ([]chat.BackgroundImage, int, error) {
	if i < 0 || i >= len(images) {
		return images, selected, chat.Invalid("index", "must be between 0 and %d", len(images)-1)
	}
	out := slices.Delete(slices.Clone(images), i, i+1)
	switch {
	case selected == i:
		selected = -1
	case selected > i:
		selected--
	}
	return out, selected, nil
}

func (s *Store) persist(prefs chat.Preferences) error {
	if err := s.kv.Set(themeKey, string(prefs.Theme)); err != nil {
		return err
	}
	if err := s.kv.SetJSON(samplingKey, prefs.Sampling); err != nil {
		return err
	}
	if err := s.kv.SetJSON(backgroundImagesKey, prefs.BackgroundImages); err != nil {
		return err
	}
	if err := s.kv.Set(selectedImageKey, strconv.Itoa(prefs.SelectedBackgroundImage)); err != nil {
		return err
	}

	s.mu.Lock()
	s.prefs = clonePrefs(prefs)
	s.mu.Unlock()
	return nil
}

// normalize fills unset values from the defaults and drops an out-of-range selection.
func normalize(prefs chat.Preferences) chat.Preferences {
	defaults := chat.DefaultPreferences()
	if !validTheme(prefs.Theme) {
		prefs.Theme = defaults.Theme
	}
	prefs.Temperature = lo.Ternary(prefs.Temperature > 0, prefs.Temperature, defaults.Temperature)
	prefs.MaxTokens = lo.Ternary(prefs.MaxTokens > 0, prefs.MaxTokens, defaults.MaxTokens)
	prefs.TopP = lo.Ternary(prefs.TopP > 0, prefs.TopP, defaults.TopP)
	if prefs.BackgroundImages == nil {
		prefs.BackgroundImages = []chat.BackgroundImage{}
	}
	if prefs.SelectedBackgroundImage < -1 || prefs.SelectedBackgroundImage >= len(prefs.BackgroundImages) {
		prefs.SelectedBackgroundImage = -1
	}
	return prefs
}

func validTheme(theme chat.Theme) bool {
	return theme == chat.ThemeLight || theme == chat.ThemeDark
}

func validateSampling(s chat.Sampling) error {
	switch {
	case s.Temperature < 0 || s.Temperature > MaxTemperature:
		return chat.Invalid("temperature", "must be between 0 and %.0f", MaxTemperature)
	case s.MaxTokens < 1 || s.MaxTokens > MaxTokensLimit:
		return chat.Invalid("maxTokens", "must be between 1 and %d", MaxTokensLimit)
	case s.TopP < 0 || s.TopP > 1:
		return chat.Invalid("topP", "must be between 0 and 1")
	}
	return nil
}

func clonePrefs(p chat.Preferences) chat.Preferences {
	p.BackgroundImages = slices.Clone(p.BackgroundImages)
	return p
}
