package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/chat"
)

var errNotConnected = errors.New("not connected to a database; run 'askdata connect' first")

func newAskCmd(cfgFile *string) *cobra.Command {
	var tf tableFlags
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			msg, err := a.ctrl.Ask(cmd.Context(), a.client, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if a.ctrl.State() == chat.ErrorShown {
				return errors.New(strings.TrimPrefix(msg.Content, "Error: "))
			}
			return a.printAnswer(cmd.Context(), cmd.OutOrStdout(), msg, &tf)
		},
	}
	tf.register(cmd)
	return cmd
}

func newUploadCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.csv|file.xml>",
		Short: "Upload a data file to ask questions about",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.ctrl.Upload(cmd.Context(), a.client, args[0])
			if err != nil {
				return err
			}
			text := resp.Message
			if text == "" {
				text = "File uploaded"
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newConnectCmd(cfgFile *string) *cobra.Command {
	var (
		creds   api.Credentials
		profile string
		saveAs  string
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect the backend to a SQL Server database",
		Long: `Connect forwards the credentials to the backend, which opens the
database connection. The password is prompted for when omitted.

A saved profile (--profile) supplies the server and database;
--save-as stores them under a new name after a successful connect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			if profile != "" {
				conns := a.session.Connections()
				if conns == nil {
					return fmt.Errorf("profile %q: saved connections are unavailable", profile)
				}
				c, ok := conns.Get(profile)
				if !ok {
					return fmt.Errorf("no saved connection named %q", profile)
				}
				if creds.Server == "" {
					creds.Server = c.Server
				}
				if creds.Database == "" {
					creds.Database = c.Database
				}
			}
			if creds.Password == "" && isTerminal(os.Stdin) {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				pw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				creds.Password = string(pw)
			}

			st, err := a.session.Connect(cmd.Context(), creds, saveAs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s (%d tables)\n", st.Database, len(st.Tables))
			for _, t := range st.Tables {
				fmt.Fprintln(out, "  "+t)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Server, "db-server", "", "database server")
	cmd.Flags().StringVar(&creds.Database, "database", "", "database name")
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "database user")
	cmd.Flags().StringVar(&creds.Password, "password", "", "database password (prompted when empty)")
	cmd.Flags().StringVar(&profile, "profile", "", "use the server and database of a saved connection")
	cmd.Flags().StringVar(&saveAs, "save-as", "", "save server and database under this name")
	return cmd
}

func newDisconnectCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "End the backend database session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			// The local session is cleared even when the server call fails.
			msg, _ := a.session.Disconnect(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newTablesCmd(cfgFile *string) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the connected database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.session.CheckStatus(cmd.Context())
			if err != nil {
				return err
			}
			if !st.Connected {
				return errNotConnected
			}
			tables := st.Tables
			if refresh {
				if tables, err = a.session.RefreshTables(cmd.Context()); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s\n", st.Database)
			for _, t := range tables {
				fmt.Fprintln(out, "  "+t)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload the table list from the database")
	return cmd
}

func newPreviewCmd(cfgFile *string) *cobra.Command {
	var tf tableFlags
	cmd := &cobra.Command{
		Use:   "preview <table>",
		Short: "Print the first rows of a database table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.session.CheckStatus(cmd.Context())
			if err != nil {
				return err
			}
			if !st.Connected {
				return errNotConnected
			}

			data, err := a.session.PreviewTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return tf.print(cmd.OutOrStdout(), *data, a.cfg.RowsPerPage)
		},
	}
	tf.register(cmd)
	return cmd
}
