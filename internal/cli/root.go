// Package cli provides the command-line interface for blockplan.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"blockplan/internal/config"
	appLog "blockplan/internal/log"
)

// Command group IDs.
const (
	groupServer = "server"
	groupPlan   = "plan"
)

const defaultConfigPath = "config.yaml"

// env carries the flags and config shared by all subcommands.
type env struct {
	configPath string
	logLevel   string
	remote     string
	cfg        *config.Config
}

// remoteURL returns the --remote flag, falling back to the config.
func (e *env) remoteURL() string {
	if e.remote != "" {
		return e.remote
	}
	return e.cfg.RemoteURL
}

// NewRootCommand creates the root command for blockplan.
func NewRootCommand(version string) *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "blockplan",
		Short: "Personal time-block week planner",
		Long: `blockplan lays out a week as time blocks: drag to create blocks,
resize them, and see habits projected from recurring tasks next to
a soft daily budget.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", e.configPath, err)
			}
			e.cfg = cfg
			level := cfg.LogLevel
			if e.logLevel != "" {
				level = e.logLevel
			}
			appLog.SetLevel(appLog.ParseLevel(level))
			appLog.Debug("config loaded", "path", e.configPath, "command", cmd.Name())
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", defaultConfigPath, "Path to config file (.yaml or .toml)")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddGroup(
		&cobra.Group{ID: groupServer, Title: "Server Commands:"},
		&cobra.Group{ID: groupPlan, Title: "Planning Commands:"},
	)

	serveCmd := newServeCommand(e)
	serveCmd.GroupID = groupServer

	snapshotCmd := newSnapshotCommand(e)
	snapshotCmd.GroupID = groupServer

	tuiCmd := newTUICommand(e)
	tuiCmd.GroupID = groupPlan

	weekCmd := newWeekCommand(e)
	weekCmd.GroupID = groupPlan

	exportCmd := newExportCommand(e)
	exportCmd.GroupID = groupPlan

	planCmd := newPlanCommand(e)
	planCmd.GroupID = groupPlan

	root.AddCommand(serveCmd, snapshotCmd, tuiCmd, weekCmd, exportCmd, planCmd)
	return root
}
