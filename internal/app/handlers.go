package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gennadis/geminichatui/internal/auth"
	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/samber/lo"
)

func (a *App) NewConversation(ctx context.Context) error {
	conv, err := a.Convs.Create(ctx)
	if err != nil {
		return a.fail("Failed to create conversation", err)
	}
	slog.Debug("Conversation created", slog.String("id", conv.ID))
	return nil
}

// Send creates a conversation first when none is open.
func (a *App) Send(ctx context.Context, content string) error {
	if a.Convs.CurrentID() == "" {
		if err := a.NewConversation(ctx); err != nil {
			return err
		}
	}
	if _, err := a.Convs.Send(ctx, content); err != nil {
		return a.fail("Failed to send message", err)
	}
	return nil
}

// Open opens the n-th entry (1-based) of the current list page.
func (a *App) Open(ctx context.Context, n int) error {
	id, err := a.Convs.ResolveIndex(n)
	if err != nil {
		return a.fail("Failed to open conversation", err)
	}
	if err := a.Convs.Open(ctx, id); err != nil {
		return a.fail("Failed to open conversation", err)
	}
	return nil
}

func (a *App) ListConversations(ctx context.Context) error {
	return a.page(a.Convs.Refresh(ctx))
}

func (a *App) GoToPage(ctx context.Context, input string) error {
	return a.page(a.Convs.JumpToPage(ctx, input))
}

func (a *App) NextPage(ctx context.Context) error {
	return a.page(a.Convs.NextPage(ctx))
}

func (a *App) PrevPage(ctx context.Context) error {
	return a.page(a.Convs.PrevPage(ctx))
}

func (a *App) ShowArchived(ctx context.Context, archived bool) error {
	return a.page(a.Convs.SetArchivedFilter(ctx, archived))
}

func (a *App) page(err error) error {
	if err != nil {
		return a.fail("Failed to load conversations", err)
	}
	return nil
}

func (a *App) Rename(ctx context.Context, title string) error {
	if err := a.Convs.Rename(ctx, title); err != nil {
		return a.fail("Failed to rename conversation", err)
	}
	a.ui.Notify(LevelSuccess, "Conversation renamed")
	return nil
}

func (a *App) SaveConversation(ctx context.Context, title string) error {
	if err := a.Convs.Save(ctx, title); err != nil {
		return a.fail("Failed to save conversation", err)
	}
	a.ui.Notify(LevelSuccess, "Conversation saved")
	return nil
}

// Archive archives (or restores) the n-th list entry; n == 0 means the open conversation.
func (a *App) Archive(ctx context.Context, n int, archive bool) error {
	id, err := a.target(n)
	if err != nil {
		return a.fail("Failed to archive conversation", err)
	}
	if err := a.Convs.SetArchived(ctx, id, archive); err != nil {
		return a.fail("Failed to archive conversation", err)
	}
	a.ui.Notify(LevelSuccess, lo.Ternary(archive, "Conversation archived", "Conversation restored"))
	return nil
}

// Delete removes the given list entries; no entries means the open conversation.
func (a *App) Delete(ctx context.Context, ns ...int) error {
	if len(ns) == 0 {
		ns = []int{0}
	}
	ids := make([]string, 0, len(ns))
	for _, n := range ns {
		id, err := a.target(n)
		if err != nil {
			return a.fail("Failed to delete conversation", err)
		}
		ids = append(ids, id)
	}

	var err error
	if ids = lo.Uniq(ids); len(ids) == 1 {
		err = a.Convs.Delete(ctx, ids[0])
	} else {
		err = a.Convs.DeleteMany(ctx, ids)
	}
	if err != nil {
		return a.fail("Failed to delete conversation", err)
	}
	a.ui.Notify(LevelSuccess, fmt.Sprintf("Deleted %d conversation(s)", len(ids)))
	return nil
}

func (a *App) target(n int) (string, error) {
	if n == 0 {
		if id := a.Convs.CurrentID(); id != "" {
			return id, nil
		}
		return "", chat.Invalid("conversation", "no conversation is open")
	}
	return a.Convs.ResolveIndex(n)
}

func (a *App) Models(ctx context.Context) ([]chat.Model, error) {
	models, err := a.api.Models(ctx)
	if err != nil {
		return nil, a.fail("Failed to load models", err)
	}
	a.ui.RenderModels(models, a.Convs.Model())
	return models, nil
}

// SelectModel sets the model used for subsequent replies; an empty name restores the backend default.
func (a *App) SelectModel(name string) {
	a.Convs.SetModel(name)
	a.ui.Notify(LevelInfo, "Model: "+lo.Ternary(name == "", "backend default", name))
}

func (a *App) SetTheme(ctx context.Context, theme chat.Theme) error {
	return a.settings("Failed to change theme", a.Prefs.SetTheme(ctx, theme))
}

// UpdateSampling applies fn to a copy of the current sampling parameters and saves the result.
func (a *App) UpdateSampling(ctx context.Context, fn func(*chat.Sampling)) error {
	sampling := a.Prefs.Sampling()
	fn(&sampling)
	return a.settings("Failed to update generation settings", a.Prefs.SetSampling(ctx, sampling))
}

func (a *App) AddBackgroundImage(ctx context.Context, url, name string) error {
	return a.settings("Failed to add background image", a.Prefs.AddBackgroundImage(ctx, url, name))
}

// RemoveBackgroundImage takes a 1-based position.
func (a *App) RemoveBackgroundImage(ctx context.Context, n int) error {
	return a.settings("Failed to remove background image", a.Prefs.RemoveBackgroundImage(ctx, n-1))
}

// SelectBackgroundImage takes a 1-based position; 0 clears the selection.
func (a *App) SelectBackgroundImage(ctx context.Context, n int) error {
	return a.settings("Failed to select background image", a.Prefs.SelectBackgroundImage(ctx, n-1))
}

func (a *App) ResetSettings() error {
	return a.settings("Failed to reset settings", a.Prefs.Reset())
}

func (a *App) ShowSettings() {
	a.ui.RenderSettings(a.Prefs.Preferences())
}

func (a *App) settings(action string, err error) error {
	if err != nil {
		return a.fail(action, err)
	}
	a.ui.RenderSettings(a.Prefs.Preferences())
	return nil
}

func (a *App) UpdateProfile(ctx context.Context, update chat.ProfileUpdate) error {
	if update.Username == "" && update.Email == "" {
		return a.fail("Failed to update profile", chat.Invalid("profile", "nothing to update"))
	}
	user, err := a.api.UpdateProfile(ctx, update)
	if err != nil {
		return a.fail("Failed to update profile", err)
	}
	a.setUser(user)
	a.ui.Notify(LevelSuccess, "Profile updated")
	return nil
}

func (a *App) ChangePassword(ctx context.Context, change chat.PasswordChange) error {
	if err := auth.ValidatePasswordChange(change); err != nil {
		return a.fail("Failed to change password", err)
	}
	if err := a.api.ChangePassword(ctx, change); err != nil {
		return a.fail("Failed to change password", err)
	}
	a.ui.Notify(LevelSuccess, "Password changed")
	return nil
}

var avatarExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// UploadAvatar sends the image file at path as the new avatar.
func (a *App) UploadAvatar(ctx context.Context, path string) error {
	if !slices.Contains(avatarExtensions, strings.ToLower(filepath.Ext(path))) {
		return a.fail("Failed to upload avatar", chat.Invalid("avatar", "must be one of %v", avatarExtensions))
	}
	f, err := os.Open(path)
	if err != nil {
		slog.Error("Failed to open avatar file", "path", path, "error", err)
		return a.fail("Failed to upload avatar", err)
	}
	defer f.Close()

	user, err := a.api.UploadAvatar(ctx, filepath.Base(path), f)
	if err != nil {
		return a.fail("Failed to upload avatar", err)
	}
	a.setUser(user)
	a.ui.Notify(LevelSuccess, "Avatar updated")
	return nil
}

func (a *App) DeleteAvatar(ctx context.Context) error {
	if err := a.api.DeleteAvatar(ctx); err != nil {
		return a.fail("Failed to delete avatar", err)
	}
	a.mu.Lock()
	if a.user != nil {
		a.user.Avatar = ""
	}
	a.mu.Unlock()
	a.ui.Notify(LevelSuccess, "Avatar removed")
	return nil
}

func (a *App) setUser(user *chat.User) {
	if user == nil {
		return
	}
	a.mu.Lock()
	a.user = user
	a.mu.Unlock()
}
