package api

import (
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
)

// Backend analysis modes.
const (
	ModeSQL = "sql"
	ModeCSV = "csv"
)

// Credentials are forwarded to /connect_db and never stored.
type Credentials struct {
	Server   string `json:"server"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Complete reports whether every field is filled in.
func (c Credentials) Complete() bool {
	return c.Server != "" && c.Database != "" && c.Username != "" && c.Password != ""
}

type askRequest struct {
	Question string `json:"question"`
}

// AskResponse is the /ask payload. Image is a bare asset name.
type AskResponse struct {
	Answer string              `json:"answer"`
	Table  *explorer.TableData `json:"table"`
	Image  string              `json:"image"`
	Error  string              `json:"error"`
}

// ConnectResponse is the /connect_db payload.
type ConnectResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	Tables  []string `json:"tables"`
	Error   string   `json:"error"`
}

// StatusResponse is the /check_connection_status payload.
type StatusResponse struct {
	Connected bool     `json:"connected"`
	Database  string   `json:"database"`
	Tables    []string `json:"tables"`
	Error     string   `json:"error"`
}

// MessageResponse is the generic {message, error} payload.
type MessageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type tablesResponse struct {
	Message string   `json:"message"`
	Tables  []string `json:"tables"`
	Error   string   `json:"error"`
}

type switchModeRequest struct {
	Mode string `json:"mode"`
}

type previewRequest struct {
	Table string `json:"table"`
}
