package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/j-veylop/credits-dashboard-tui/internal/config"
	"github.com/j-veylop/credits-dashboard-tui/internal/db"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/auth"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/billing"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored 88code auth token",
		Long: `Manage the auth token kept in the local database.

C88_AUTH_TOKEN takes precedence over the stored token, which takes
precedence over TOKEN_FILE.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [token]",
		Short: "Store a token; reads stdin when the argument is omitted or \"-\"",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 && args[0] != "-" {
				raw = args[0]
			} else {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = line
			}
			return withTokens(cmd.Context(), func(ctx context.Context, _ *config.Config, tokens *auth.Cache) error {
				if err := tokens.Save(ctx, raw); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token %s saved\n", auth.Mask(config.CleanToken(raw)))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTokens(cmd.Context(), func(ctx context.Context, _ *config.Config, tokens *auth.Cache) error {
				if err := tokens.Clear(ctx); err != nil {
					return fmt.Errorf("failed to clear token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Stored token removed")
				return nil
			})
		},
	})

	var check bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the token in use and where it comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTokens(cmd.Context(), func(ctx context.Context, cfg *config.Config, tokens *auth.Cache) error {
				out := cmd.OutOrStdout()
				if _, err := tokens.Token(ctx); err != nil {
					if errors.Is(err, auth.ErrNoToken) {
						fmt.Fprintln(out, "No token configured")
						return nil
					}
					return err
				}
				fmt.Fprintf(out, "Token: %s (source: %s)\n", tokens.Masked(), tokens.Source())

				if !check {
					return nil
				}
				client := billing.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, tokens)
				login, err := tokens.Validate(ctx, client)
				if err != nil {
					return fmt.Errorf("token check failed: %w", err)
				}
				fmt.Fprintf(out, "Logged in as %s <%s>\n", login.LoginName, login.Email)
				return nil
			})
		},
	}
	show.Flags().BoolVar(&check, "check", false, "validate the token against the login endpoint")
	cmd.AddCommand(show)

	return cmd
}

// withTokens opens the database for the duration of fn.
func withTokens(ctx context.Context, fn func(context.Context, *config.Config, *auth.Cache) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	return fn(ctx, cfg, auth.NewCache(cfg.AuthToken, cfg.TokenFile, database))
}

func readLine(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok && f == os.Stdin {
		fmt.Fprint(os.Stderr, "Token: ")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
