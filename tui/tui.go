package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/chat"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/config"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/session"
)

// Deps are the long-lived objects the TUI drives.
type Deps struct {
	Version    string
	Config     *config.Config
	Session    *session.Manager
	Client     *api.Client
	Controller *chat.Controller
}

// New builds the root model.
func New(d Deps) *App {
	rows := d.Config.RowsPerPage
	app := NewApp(
		d.Session,
		d.Client.BaseURL(),
		NewChatView(d.Controller, d.Client, rows, d.Config.Markdown),
		NewConnectView(d.Session, d.Session.Connections()),
		NewTablesView(d.Session, rows),
	)
	if d.Version != "" {
		app.version = d.Version
	}
	return app
}

// Start launches the TUI and blocks until the user quits.
func Start(d Deps) error {
	p := tea.NewProgram(New(d), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
