package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/gennadis/geminichatui/internal/conversation"
	"github.com/spf13/cobra"
)

var (
	listPage     int
	listArchived bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat (default)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var loginCmd = &cobra.Command{
	Use:   "login <email-or-username>",
	Short: "Log in and store the session token locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, "/login "+args[0], true)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, "/register "+strings.Join(args, " "), true)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and forget the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, "/logout", false)
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, "/models", false)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [n]",
	Short: "Browse conversations stored locally, without contacting the backend",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, strings.TrimSpace("/history "+strings.Join(args, " ")), false)
	},
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List one page of your conversations",
	Args:    cobra.NoArgs,
	RunE:    runConversations,
}

func init() {
	conversationsCmd.Flags().IntVarP(&listPage, "page", "p", 1, "Page to show")
	conversationsCmd.Flags().BoolVarP(&listArchived, "archived", "a", false, "Show archived conversations")

	rootCmd.AddCommand(chatCmd, loginCmd, registerCmd, logoutCmd, modelsCmd, historyCmd, conversationsCmd)
}

func runConversations(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	if !rt.app.Auth.LoggedIn() {
		return fmt.Errorf("not logged in, run %q first", "geminichatui login <email-or-username>")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return listConversations(ctx, rt)
}

func listConversations(ctx context.Context, rt *deps) error {
	page, err := rt.api.ListConversations(ctx, listPage, rt.cfg.PageSize, listArchived)
	if err != nil {
		return err
	}
	current := page.CurrentPage
	if current == 0 {
		current = listPage
	}
	rt.ui.RenderConversations(page.Items, "", conversation.NewPager(current, page.TotalPages))
	return nil
}
