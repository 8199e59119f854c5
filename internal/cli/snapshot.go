package cli

import (
	"time"

	"github.com/spf13/cobra"

	"blockplan/internal/capture"
)

// snapshotFunc is a variable so tests can avoid launching Chromium.
var snapshotFunc = capture.WeekPNG

func newSnapshotCommand(e *env) *cobra.Command {
	var opts capture.Options
	var start string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the week page of a running server to PNG",
		Long: `Capture /week from a running server with headless Chromium.

The page sets data-ready="true" once it has rendered; the screenshot is
taken after that.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if start != "" {
				day, err := parseDayFlag(start)
				if err != nil {
					return err
				}
				opts.Week = day
			}
			if opts.BaseURL == "" {
				opts.BaseURL = e.cfg.RemoteURL
			}
			return snapshotFunc(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.BaseURL, "url", "", "Server base URL (default remote_url)")
	cmd.Flags().StringVar(&start, "start", "", "Any day of the week, YYYY-MM-DD (default the server's today)")
	cmd.Flags().StringVarP(&opts.OutputPath, "out", "o", "week.png", "PNG output path")
	cmd.Flags().IntVar(&opts.Width, "width", capture.DefaultWidth, "Viewport width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", capture.DefaultHeight, "Viewport height in pixels")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Capture timeout")
	return cmd
}
