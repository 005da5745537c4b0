package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gennadis/geminichatui/internal/app"
	"github.com/gennadis/geminichatui/internal/auth"
	"github.com/gennadis/geminichatui/internal/client"
	"github.com/gennadis/geminichatui/internal/config"
	"github.com/gennadis/geminichatui/internal/platform"
	"github.com/gennadis/geminichatui/internal/term"
	"github.com/gennadis/geminichatui/storage"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const historyFileName = ".geminichatui_history"

var (
	envFile      string
	platformName string
	apiURL       string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "geminichatui",
	Short: "Terminal client for the Gemini chat backend",
	Long: `geminichatui talks to the Gemini chat backend: it logs you in, keeps your
conversations and preferences in sync and streams replies as they are generated.

Without a subcommand it starts the interactive chat.`,
	RunE:          runChat,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file with configuration")
	rootCmd.PersistentFlags().StringVar(&platformName, "platform", "", "Platform: web or embedded (overrides PLATFORM)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (overrides API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")
}

// deps is everything a command needs, built from config.
type deps struct {
	cfg    *config.Config
	app    *app.App
	ui     *term.UI
	api    *client.Client
	mirror *storage.Conversations
}

func setup() (*deps, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if platformName != "" {
		cfg.Platform = platformName
	}
	if apiURL != "" {
		cfg.BaseURL = apiURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	kind, err := platform.Parse(cfg.Platform)
	if err != nil {
		return nil, err
	}

	db, err := storage.NewSqliteDB(cfg.DataFile)
	if err != nil {
		slog.Error("Failed to open local storage", "file", cfg.DataFile, "error", err)
		return nil, err
	}
	kv, err := storage.NewKV(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	mirror, err := storage.NewConversations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	tokens, err := auth.NewTokenStore(kv)
	if err != nil {
		db.Close()
		return nil, err
	}

	api := client.NewClient(*cfg, tokens, kind.ClientOptions(cfg.BaseURL)...)
	ui := term.NewUI(os.Stdout)
	a, err := app.New(*cfg, kind, api, tokens, kv, ui, app.WithMirror(mirror), app.WithCloser(db))
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("client ready",
		slog.String("platform", string(kind)),
		slog.String("base_url", cfg.BaseURL),
		slog.String("data_file", cfg.DataFile),
	)
	return &deps{cfg: cfg, app: a, ui: ui, api: api, mirror: mirror}, nil
}

func (rt *deps) close() {
	if err := rt.app.Close(); err != nil {
		slog.Error("Failed to close resources", "error", err)
	}
}

// newLiner opens the line editor with history loaded from next to the data file.
func newLiner(cfg *config.Config) (*liner.State, func()) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(filepath.Dir(cfg.DataFile), historyFileName)
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	return line, func() {
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
		line.Close()
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	wg := rt.app.Auth.Run(ctx, rt.cfg.TokenRefreshInterval)
	defer func() {
		cancel()
		wg.Wait()
	}()

	line, closeLine := newLiner(rt.cfg)
	defer closeLine()

	if err := rt.app.Init(ctx); err != nil {
		return err
	}
	return term.NewREPL(rt.app, rt.ui, line, rt.mirror).Run(ctx)
}

// runOnce executes a single REPL command line and reports its error.
func runOnce(cmd *cobra.Command, line string, interactive bool) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	var in term.Prompter = noPrompt{}
	if interactive {
		state, closeLine := newLiner(rt.cfg)
		defer closeLine()
		in = state
	}
	return term.NewREPL(rt.app, rt.ui, in, rt.mirror).Execute(cmd.Context(), line)
}

type noPrompt struct{}

var errNotInteractive = errors.New("input is not available for this command")

func (noPrompt) Prompt(string) (string, error)         { return "", errNotInteractive }
func (noPrompt) PasswordPrompt(string) (string, error) { return "", errNotInteractive }
