package term

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gennadis/geminichatui/internal/app"
	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/gennadis/geminichatui/internal/conversation"
	"github.com/peterh/liner"
	"github.com/samber/lo"
)

// Prompter reads a line of input. *liner.State satisfies it.
type Prompter interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
}

// History is the local mirror of opened conversations.
type History interface {
	Read() ([]chat.Conversation, error)
	ReadByID(id string) (*chat.Conversation, error)
}

var errQuit = errors.New("quit")

const helpText = `Commands:
  /login <email|username>      log in (prompts for password)
  /register <username> <email> create an account
  /logout                      end the session
  /new                         start a new conversation
  /list                        show the conversation list
  /open <n>                    open entry n of the list
  /page <n>, /next, /prev      page through the list
  /archived on|off             show archived or active conversations
  /rename <title>              rename the open conversation
  /save [title]                save the open conversation
  /archive [n], /unarchive [n] archive or restore a conversation
  /delete [n ...]              delete conversations (default: the open one)
  /settings [reset]            show or reset preferences
  /theme light|dark            change theme
  /temp <0-2>, /maxtokens <n>, /topp <0-1>
  /bg add <url> [name], /bg rm <n>, /bg select <n>
  /models, /model [name]       list or choose the model
  /profile name|email <value>  update profile
  /password                    change password
  /avatar <file> | /avatar rm  upload or remove avatar
  /history [n]                 browse the local copy of opened conversations
  /help, /quit`

type REPL struct {
	app     *app.App
	ui      *UI
	in      Prompter
	history History
}

func NewREPL(a *app.App, ui *UI, in Prompter, history History) *REPL {
	return &REPL{app: a, ui: ui, in: in, history: history}
}

// Run reads commands until /quit, end of input or Ctrl+C at the prompt.
// Ctrl+C while a reply is streaming cancels only that reply.
func (r *REPL) Run(ctx context.Context) error {
	for {
		input, err := r.in.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			slog.Error("Failed to read input", "error", err)
			return err
		}
		if line, ok := r.in.(*liner.State); ok && strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		cmdCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err = r.Execute(cmdCtx, input)
		stop()
		if errors.Is(err, errQuit) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Execute runs one line of input. Plain text is sent as a message.
func (r *REPL) Execute(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if !strings.HasPrefix(input, "/") {
		return r.app.Send(ctx, input)
	}

	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(input, cmd))

	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		r.ui.Printf("%s\n", helpText)
		return nil
	case "/login":
		return r.login(ctx, args)
	case "/register":
		return r.register(ctx, args)
	case "/logout":
		return r.app.Logout(ctx)
	case "/new":
		return r.app.NewConversation(ctx)
	case "/list":
		return r.app.ListConversations(ctx)
	case "/open":
		n, err := r.number(args, "open")
		if err != nil {
			return err
		}
		return r.app.Open(ctx, n)
	case "/page":
		return r.app.GoToPage(ctx, rest)
	case "/next":
		return r.app.NextPage(ctx)
	case "/prev":
		return r.app.PrevPage(ctx)
	case "/archived":
		return r.app.ShowArchived(ctx, rest == "on")
	case "/rename":
		return r.app.Rename(ctx, rest)
	case "/save":
		return r.app.SaveConversation(ctx, rest)
	case "/archive", "/unarchive":
		n := 0
		if len(args) > 0 {
			var err error
			if n, err = r.number(args, "archive"); err != nil {
				return err
			}
		}
		return r.app.Archive(ctx, n, cmd == "/archive")
	case "/delete":
		ns, err := r.numbers(args)
		if err != nil {
			return err
		}
		return r.app.Delete(ctx, ns...)
	case "/settings":
		if rest == "reset" {
			return r.app.ResetSettings()
		}
		r.app.ShowSettings()
		return nil
	case "/theme":
		return r.app.SetTheme(ctx, chat.Theme(rest))
	case "/temp", "/maxtokens", "/topp":
		return r.sampling(ctx, cmd, rest)
	case "/bg":
		return r.background(ctx, args)
	case "/models":
		_, err := r.app.Models(ctx)
		return err
	case "/model":
		r.app.SelectModel(rest)
		return nil
	case "/profile":
		return r.profile(ctx, args)
	case "/password":
		return r.password(ctx)
	case "/avatar":
		if rest == "rm" {
			return r.app.DeleteAvatar(ctx)
		}
		return r.app.UploadAvatar(ctx, rest)
	case "/history":
		return r.browseHistory(args)
	}
	return r.invalid("command", "unknown command %s, try /help", cmd)
}

func (r *REPL) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return r.invalid("login", "usage: /login <email or username>")
	}
	password, err := r.in.PasswordPrompt("password: ")
	if err != nil {
		return err
	}
	return r.app.Login(ctx, chat.NewCredentials(args[0], password))
}

func (r *REPL) register(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return r.invalid("register", "usage: /register <username> <email>")
	}
	password, err := r.in.PasswordPrompt("password: ")
	if err != nil {
		return err
	}
	confirm, err := r.in.PasswordPrompt("confirm password: ")
	if err != nil {
		return err
	}
	return r.app.Register(ctx, chat.Registration{Username: args[0], Email: args[1], Password: password, Confirm: confirm})
}

func (r *REPL) password(ctx context.Context) error {
	var change chat.PasswordChange
	for _, p := range []struct {
		prompt string
		dst    *string
	}{
		{"current password: ", &change.CurrentPassword},
		{"new password: ", &change.NewPassword},
		{"confirm new password: ", &change.Confirm},
	} {
		v, err := r.in.PasswordPrompt(p.prompt)
		if err != nil {
			return err
		}
		*p.dst = v
	}
	return r.app.ChangePassword(ctx, change)
}

func (r *REPL) profile(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return r.invalid("profile", "usage: /profile name|email <value>")
	}
	switch args[0] {
	case "name":
		return r.app.UpdateProfile(ctx, chat.ProfileUpdate{Username: args[1]})
	case "email":
		return r.app.UpdateProfile(ctx, chat.ProfileUpdate{Email: args[1]})
	}
	return r.invalid("profile", "usage: /profile name|email <value>")
}

func (r *REPL) sampling(ctx context.Context, cmd, value string) error {
	if cmd == "/maxtokens" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return r.invalid("maxTokens", "must be a whole number")
		}
		return r.app.UpdateSampling(ctx, func(s *chat.Sampling) { s.MaxTokens = n })
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return r.invalid(strings.TrimPrefix(cmd, "/"), "must be a number")
	}
	return r.app.UpdateSampling(ctx, func(s *chat.Sampling) {
		if cmd == "/temp" {
			s.Temperature = f
		} else {
			s.TopP = f
		}
	})
}

func (r *REPL) background(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return r.invalid("bg", "usage: /bg add <url> [name] | /bg rm <n> | /bg select <n>")
	}
	switch args[0] {
	case "add":
		return r.app.AddBackgroundImage(ctx, args[1], strings.Join(args[2:], " "))
	case "rm", "select":
		n, err := r.number(args[1:], "bg")
		if err != nil {
			return err
		}
		if args[0] == "rm" {
			return r.app.RemoveBackgroundImage(ctx, n)
		}
		return r.app.SelectBackgroundImage(ctx, n)
	}
	return r.invalid("bg", "usage: /bg add <url> [name] | /bg rm <n> | /bg select <n>")
}

// browseHistory lists the local mirror, or prints entry n of it.
func (r *REPL) browseHistory(args []string) error {
	if r.history == nil {
		return r.invalid("history", "no local history available")
	}
	convs, err := r.history.Read()
	if err != nil {
		r.ui.Notify(app.LevelError, "Failed to read local history: "+err.Error())
		return err
	}
	if len(args) == 0 {
		r.ui.RenderConversations(convs, "", conversation.Pager{})
		return nil
	}

	n, err := r.number(args, "history")
	if err != nil {
		return err
	}
	if n < 1 || n > len(convs) {
		return r.invalid("history", "enter a number between 1 and %d", len(convs))
	}
	conv, err := r.history.ReadByID(convs[n-1].ID)
	if err != nil {
		r.ui.Notify(app.LevelError, "Failed to read local history: "+err.Error())
		return err
	}
	r.ui.ShowTranscript(*conv)
	return nil
}

func (r *REPL) number(args []string, field string) (int, error) {
	if len(args) == 0 {
		return 0, r.invalid(field, "a number is required")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, r.invalid(field, "%q is not a number", args[0])
	}
	return n, nil
}

func (r *REPL) numbers(args []string) ([]int, error) {
	ns := make([]int, 0, len(args))
	for _, a := range args {
		n, err := r.number([]string{a}, "delete")
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return lo.Uniq(ns), nil
}

func (r *REPL) invalid(field, format string, args ...any) error {
	err := chat.Invalid(field, format, args...)
	r.ui.Notify(app.LevelError, err.Error())
	return err
}
