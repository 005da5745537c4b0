// Package term is the terminal front end: a line-oriented transcript driven by the App.
package term

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/gennadis/geminichatui/internal/app"
	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/gennadis/geminichatui/internal/conversation"
	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
)

const defaultTitleWidth = 48

var (
	headerColor    = color.New(color.Bold)
	userColor      = color.New(color.FgCyan, color.Bold)
	assistantColor = color.New(color.FgMagenta, color.Bold)
	faintColor     = color.New(color.Faint)

	levelColors = map[app.Level]*color.Color{
		app.LevelInfo:    color.New(color.FgCyan),
		app.LevelSuccess: color.New(color.FgGreen),
		app.LevelWarning: color.New(color.FgYellow),
		app.LevelError:   color.New(color.FgRed),
	}
)

// UI prints to out. Only messages not yet shown are printed, and a streamed reply is
// printed as it arrives rather than again when it completes.
type UI struct {
	out        io.Writer
	titleWidth int
	now        func() time.Time

	mu        sync.Mutex
	openID    string
	shown     int
	streaming bool
	printed   int
}

func NewUI(out io.Writer) *UI {
	return &UI{out: out, titleWidth: defaultTitleWidth, now: time.Now}
}

func (u *UI) RenderConversations(items []chat.Conversation, currentID string, pager conversation.Pager) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(items) == 0 {
		faintColor.Fprintln(u.out, "No conversations yet. Type a message or /new to start one.")
		return
	}
	for i, c := range items {
		marker := lo.Ternary(c.ID == currentID, "*", " ")
		title := runewidth.FillRight(runewidth.Truncate(c.DisplayTitle(), u.titleWidth, "…"), u.titleWidth)
		when := ""
		if !c.UpdatedAt.IsZero() {
			when = app.FormatTime(c.UpdatedAt, u.now())
		}
		fmt.Fprintf(u.out, "%s%3d  %s  %s%s\n", marker, i+1, title, faintColor.Sprint(when), lo.Ternary(c.Archived, " [archived]", ""))
	}
	if pager.Total > 1 {
		fmt.Fprintln(u.out, faintColor.Sprint(FormatPager(pager)))
	}
}

// FormatPager renders pager as "‹ 1 … 4 [5] 6 … 10 ›".
func FormatPager(p conversation.Pager) string {
	parts := lo.Map(p.Numbers, func(n int, _ int) string {
		switch n {
		case conversation.Ellipsis:
			return "…"
		case p.Current:
			return "[" + strconv.Itoa(n) + "]"
		}
		return strconv.Itoa(n)
	})
	if p.HasPrev() {
		parts = append([]string{"‹"}, parts...)
	}
	if p.HasNext() {
		parts = append(parts, "›")
	}
	return strings.Join(parts, " ")
}

func (u *UI) RenderConversation(conv chat.Conversation) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.endStreamLocked()
	if conv.ID == "" || conv.ID != u.openID {
		u.shown = 0
	}
	u.openID = conv.ID
	headerColor.Fprintf(u.out, "\n== %s ==\n", conv.DisplayTitle())
}

func (u *UI) RenderMessages(messages []chat.Message) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.streaming {
		u.endStreamLocked()
		if n := len(messages); n > u.shown && messages[n-1].Role == chat.ChatRoleAssistant {
			u.shown = n
			return
		}
	}
	if len(messages) < u.shown {
		faintColor.Fprintln(u.out, "(last message was not sent)")
		u.shown = len(messages)
		return
	}
	for _, m := range messages[u.shown:] {
		u.printMessageLocked(m)
	}
	u.shown = len(messages)
}

// ShowTranscript prints a whole conversation outside the live chat, such as a local copy.
func (u *UI) ShowTranscript(conv chat.Conversation) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.endStreamLocked()
	u.openID = ""
	u.shown = 0
	headerColor.Fprintf(u.out, "\n== %s (local copy) ==\n", conv.DisplayTitle())
	for _, m := range conv.Messages {
		u.printMessageLocked(m)
	}
}

// RenderPartial receives the accumulated reply so far and prints the new suffix.
func (u *UI) RenderPartial(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.streaming {
		assistantColor.Fprint(u.out, "gemini: ")
		u.streaming = true
		u.printed = 0
	}
	if len(text) > u.printed {
		fmt.Fprint(u.out, text[u.printed:])
		u.printed = len(text)
	}
}

func (u *UI) ShowWelcome() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.endStreamLocked()
	u.shown = 0
	u.openID = ""
	headerColor.Fprintln(u.out, "\nWelcome! Type a message to start a new conversation, or /help for commands.")
}

func (u *UI) ShowLogin() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.endStreamLocked()
	u.shown = 0
	u.openID = ""
	fmt.Fprintln(u.out, "You are not logged in. Use /login <email> or /register <username> <email>.")
}

func (u *UI) ShowChat(user chat.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, "Logged in as %s\n", headerColor.Sprint(user.Username))
}

func (u *UI) RenderSettings(prefs chat.Preferences) {
	u.mu.Lock()
	defer u.mu.Unlock()

	faintColor.Fprintf(u.out, "theme=%s temperature=%.2f maxTokens=%d topP=%.2f\n", prefs.Theme, prefs.Temperature, prefs.MaxTokens, prefs.TopP)
	for i, img := range prefs.BackgroundImages {
		marker := lo.Ternary(i == prefs.SelectedBackgroundImage, "*", " ")
		faintColor.Fprintf(u.out, "%s%2d  %s  %s\n", marker, i+1, img.Name, img.URL)
	}
}

func (u *UI) RenderModels(models []chat.Model, current string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, m := range models {
		marker := lo.Ternary(m.Name == current, "*", " ")
		fmt.Fprintf(u.out, "%s %s  %s\n", marker, m.Name, faintColor.Sprint(lo.Ternary(m.DisplayName != "", m.DisplayName, m.Description)))
	}
}

func (u *UI) Notify(level app.Level, message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.endStreamLocked()
	levelColors[level].Fprintf(u.out, "[%s] %s\n", level, message)
}

// Printf writes unstyled output between renders.
func (u *UI) Printf(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

func (u *UI) printMessageLocked(m chat.Message) {
	if m.Role == chat.ChatRoleUser {
		userColor.Fprint(u.out, "you: ")
	} else {
		assistantColor.Fprint(u.out, "gemini: ")
	}
	fmt.Fprintln(u.out, m.Content)
}

func (u *UI) endStreamLocked() {
	if !u.streaming {
		return
	}
	fmt.Fprintln(u.out)
	u.streaming = false
	u.printed = 0
}
