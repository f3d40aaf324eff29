package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/mmcdole/trackr/internal/config"
	"github.com/mmcdole/trackr/internal/logging"
	"github.com/mmcdole/trackr/internal/session"
	"github.com/mmcdole/trackr/internal/tui"
	"github.com/spf13/cobra"
)

var errNotConfigured = errors.New("not logged in; run 'trackr login' first")

// app holds state shared by every subcommand
type app struct {
	configDir string
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	sess      *session.Session
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "trackr",
		Short: "Track your reading from the terminal",
		Long: `Browse and update your Trackr reading library.

Run without arguments to open the interactive browser, or use a
subcommand for scripting:
  trackr library --status reading
  trackr progress <book-id> --chapter 42
  trackr export --format yaml -o library.yaml`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "Configuration directory (default ~/.config/trackr)")

	root.AddCommand(newLoginCmd(a))
	root.AddCommand(newLogoutCmd(a))
	root.AddCommand(newLibraryCmd(a))
	root.AddCommand(newTrackCmd(a))
	root.AddCommand(newUntrackCmd(a))
	root.AddCommand(newProgressCmd(a))
	root.AddCommand(newSearchCmd(a))
	root.AddCommand(newCategoriesCmd(a))
	root.AddCommand(newListsCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newListCreateCmd(a))
	root.AddCommand(newListAddCmd(a))
	root.AddCommand(newListRemoveCmd(a))
	root.AddCommand(newExportCmd(a))

	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	logger, closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		logger = logging.NullLogger()
	}
	a.logger = logger
	a.logCloser = closer
	slog.SetDefault(logger)
	return nil
}

// session opens the signed-in session on first use
func (a *app) session() (*session.Session, error) {
	if a.sess != nil {
		return a.sess, nil
	}
	if !a.cfg.IsConfigured() {
		return nil, errNotConfigured
	}
	sess, err := session.Open(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.sess = sess
	return sess, nil
}

func (a *app) close() error {
	var err error
	if a.sess != nil {
		err = a.sess.Close()
		a.sess = nil
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
	return err
}

func (a *app) runTUI() error {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return errors.New("the interactive browser needs a terminal; see 'trackr --help' for subcommands")
	}
	sess, err := a.session()
	if err != nil {
		return err
	}

	a.logger.Info("starting TUI", "version", Version)
	p := tea.NewProgram(tui.NewModel(sess, a.logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	a.logger.Info("shutting down")
	return nil
}
