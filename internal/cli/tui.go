package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"blockplan/internal/config"
	"blockplan/internal/editor"
	appLog "blockplan/internal/log"
	"blockplan/internal/tui"
)

// runProgramFunc runs a bubbletea program; tests replace it.
var runProgramFunc = func(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
	return err
}

func newTUICommand(e *env) *cobra.Command {
	var (
		local   bool
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Edit the week in the terminal with the mouse",
		Long: `Launch the interactive week grid.

Drag on empty space to create a block, drag the top or bottom half of
a block to move that edge, click a block to edit it. Blocks are saved
to the server at --remote (or remote_url), or to the local store with
--local.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Log lines would draw over the alternate screen.
			var out io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				out = f
			}
			appLog.SetOutput(out)
			defer appLog.SetOutput(os.Stderr)

			b, err := openBackend(e.cfg, !local, e.remoteURL())
			if err != nil {
				return err
			}
			return runProgramFunc(tui.New(editorSettings(e.cfg), b, nil))
		},
	}

	cmd.Flags().StringVar(&e.remote, "remote", "", "Server base URL (overrides remote_url)")
	cmd.Flags().BoolVar(&local, "local", false, "Edit the local store instead of a server")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file while the TUI runs")
	return cmd
}

// editorSettings maps the config onto the editor's constants.
func editorSettings(cfg *config.Config) editor.Settings {
	return editor.Settings{
		Window:       cfg.Grid.Window(),
		Snap:         cfg.Grid.SnapMinutes,
		MinDuration:  cfg.Grid.MinDurationMinutes,
		DefaultBlock: cfg.Grid.DefaultBlockMinutes,
		DailyBudget:  cfg.DailyBudgetMinutes,
		WeekStart:    cfg.FirstWeekday(),
		Timeout:      cfg.Timeout(),
	}
}
