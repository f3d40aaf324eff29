package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/trackr/internal/api"
	"github.com/mmcdole/trackr/internal/config"
	"github.com/mmcdole/trackr/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(a *app) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an access token for the Trackr API",
		Long: `Prompt for an API access token, verify it against the server and
save it to the configuration file. The token can also be supplied
with the TRACKR_SERVER_TOKEN environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server != "" {
				a.cfg.Server.URL = strings.TrimRight(server, "/")
			}

			token, err := readToken()
			if err != nil {
				return err
			}
			if token == "" {
				return errors.New("token cannot be empty")
			}
			a.cfg.Server.Token = token

			client, err := api.NewClient(api.Options{
				BaseURL:   a.cfg.Server.URL,
				Token:     token,
				UserAgent: a.cfg.Server.UserAgent,
				Timeout:   a.cfg.Server.Timeout,
			}, a.logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			_, total, err := client.GetMyBooks(ctx, 0, 1)
			if err != nil {
				return fmt.Errorf("token rejected by %s: %w", a.cfg.Server.URL, err)
			}

			if err := config.Save(a.configDir, a.cfg); err != nil {
				return err
			}
			fmt.Printf("✓ Logged in to %s (%d books in library)\n", a.cfg.Server.URL, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "API base URL")
	return cmd
}

// readToken reads a token without echo when stdin is a terminal
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Print("Access token: ")
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token and drop every cached record",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The cache is cleared even when the saved token is already gone.
			sess, err := session.Open(a.cfg, a.logger)
			if err != nil {
				return err
			}
			a.sess = sess
			if err := sess.Logout(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			if err := config.ClearServerConfig(a.configDir); err != nil {
				return err
			}
			fmt.Println("✓ Logged out")
			return nil
		},
	}
}
