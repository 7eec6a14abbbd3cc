package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/config"
)

const replPrompt = "askdata> "

func newReplCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Line-oriented chat without the full-screen interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.runREPL(cmd)
		},
	}
}

func (a *app) runREPL(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	st, err := a.session.CheckStatus(ctx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: status check failed: %v\n", err)
	}

	var historyFile string
	if dir, err := config.HomeDir(); err == nil {
		historyFile = filepath.Join(dir, "repl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    replCompleter(st.Tables),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          out,
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Fprintf(out, "askdata %s (backend %s)\n", Version, a.cfg.ServerURL)
	if st.Connected {
		fmt.Fprintf(out, "Connected to %s (%d tables)\n", st.Database, len(st.Tables))
	}
	fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := a.dotCommand(ctx, cmd, line); quit {
				return nil
			}
			continue
		}

		msg, err := a.ctrl.Ask(ctx, a.client, line)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		if err := a.printAnswer(ctx, out, msg, &tableFlags{page: 1}); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		fmt.Fprintln(out)
	}
}

// dotCommand runs a REPL command and reports whether the loop should end.
func (a *app) dotCommand(ctx context.Context, cmd *cobra.Command, line string) bool {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".clear":
		if err := a.ctrl.Clear(ctx, a.client); err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		fmt.Fprintln(out, "Conversation cleared.")

	case ".upload":
		if arg == "" {
			fmt.Fprintln(errOut, "Usage: .upload <file.csv|file.xml>")
			return false
		}
		resp, err := a.ctrl.Upload(ctx, a.client, config.ExpandHome(arg))
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		fmt.Fprintln(out, resp.Message)

	case ".tables":
		st := a.session.Snapshot()
		if !st.Connected {
			fmt.Fprintln(errOut, errNotConnected)
			return false
		}
		tables, err := a.session.RefreshTables(ctx)
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		for _, t := range tables {
			fmt.Fprintln(out, "  "+t)
		}

	case ".preview":
		if arg == "" {
			fmt.Fprintln(errOut, "Usage: .preview <table>")
			return false
		}
		data, err := a.session.PreviewTable(ctx, arg)
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		tf := tableFlags{page: 1}
		if err := tf.print(out, *data, a.cfg.RowsPerPage); err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".history":
		for _, m := range a.ctrl.Messages() {
			fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp, m.Role, firstLine(m.Content))
		}

	default:
		fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .upload <file>    Upload a .csv or .xml file
  .tables           List the tables of the connected database
  .preview <table>  Show the first rows of a table
  .history          Show this session's questions and answers
  .clear            Clear the conversation
  .quit / .exit     Exit the REPL

Anything else is sent as a question.
`
	fmt.Fprintln(w, help)
}

// replCompleter completes dot-commands and table names after .preview.
func replCompleter(tables []string) *readline.PrefixCompleter {
	names := make([]readline.PrefixCompleterInterface, 0, len(tables))
	for _, t := range tables {
		names = append(names, readline.PcItem(t))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".upload"),
		readline.PcItem(".tables"),
		readline.PcItem(".preview", names...),
		readline.PcItem(".history"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
