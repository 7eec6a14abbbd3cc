// Package cmd contains all Cobra commands for askdata.
//
// The root command launches the TUI directly. The subcommands expose the
// same chat and session operations for scripts and plain terminals.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/config"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/tui"
)

// Version is set at build time.
var Version = "0.1.0"

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "askdata",
		Short: "Ask questions about your data from the terminal",
		Long: `askdata is a terminal client for a data analysis backend:
  • Ask natural-language questions about an uploaded CSV/XML file
    or a connected SQL Server database
  • Explore answer tables with search, column filters, sorting and paging
  • Browse and preview database tables

Run 'askdata' to start the TUI.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running with no subcommand launches the TUI.
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setup(cmd, cfgFile)
			if err != nil {
				return err
			}
			defer app.Close()

			return tui.Start(tui.Deps{
				Version:    Version,
				Config:     app.cfg,
				Session:    app.session,
				Client:     app.client,
				Controller: app.ctrl,
			})
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ~/.askdata/config.yaml)")
	flags.String("server", config.DefaultServerURL, "backend base URL")
	flags.Int("rows-per-page", explorer.DefaultRowsPerPage, fmt.Sprintf("rows per table page %v", explorer.PageSizes))
	flags.Int("max-upload-mb", config.DefaultMaxUploadMB, "largest file accepted for upload, in MB")
	flags.String("state-path", "", "client state database (default: ~/.askdata/state.db)")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.Int("retry-max", config.DefaultRetryMax, "retries for connection status checks")
	flags.Bool("markdown", true, "render answers as markdown")

	rootCmd.AddCommand(
		newAskCmd(&cfgFile),
		newUploadCmd(&cfgFile),
		newConnectCmd(&cfgFile),
		newDisconnectCmd(&cfgFile),
		newTablesCmd(&cfgFile),
		newPreviewCmd(&cfgFile),
		newReplCmd(&cfgFile),
	)
	return rootCmd
}

// Execute runs the root command; Ctrl+C cancels in-flight requests.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
