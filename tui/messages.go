// messages.go defines Bubble Tea messages used for async communication.
//
// Every backend request runs inside a tea.Cmd and reports back through
// one of these types, so transcript and explorer state only change on the
// update loop.
package tui

import (
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/session"
)

// AskResultMsg is sent when POST /ask completes.
type AskResultMsg struct {
	Resp *api.AskResponse
	Err  error
}

// ClearResultMsg is sent when POST /clear completes.
type ClearResultMsg struct {
	Err error
}

// UploadResultMsg is sent when an upload completes or fails validation.
type UploadResultMsg struct {
	Path string
	Resp *api.MessageResponse
	Err  error
}

// ConnectResultMsg is sent when a connect attempt completes.
type ConnectResultMsg struct {
	State session.State
	Err   error
}

// DisconnectResultMsg carries the informational disconnect message.
// Err is the server-side failure, if any; the local session is gone
// either way.
type DisconnectResultMsg struct {
	Message string
	Err     error
}

// StatusCheckedMsg is sent when the connection status check completes.
type StatusCheckedMsg struct {
	State session.State
	Err   error
}

// TablesRefreshedMsg is sent when the table list was refreshed.
type TablesRefreshedMsg struct {
	Tables []string
	Err    error
}

// PreviewLoadedMsg carries a table preview for a new preview panel.
type PreviewLoadedMsg struct {
	Name string
	Data *explorer.TableData
	Err  error
}

// ImageResolvedMsg carries the display path of a bot image.
type ImageResolvedMsg struct {
	Index int // transcript index of the message
	Ref   string
}

// StatusMsg is a transient status message for the status bar.
type StatusMsg string

// ShowConnectMsg asks the App to open the connect screen.
type ShowConnectMsg struct{}

// ShowTablesMsg asks the App to open the tables screen.
type ShowTablesMsg struct{}

// BackMsg asks the App to return to the chat screen.
type BackMsg struct{}
