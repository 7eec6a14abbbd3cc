package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/api"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/applog"
)

// State is the request lifecycle state.
type State int

const (
	Idle State = iota
	Sending
	ErrorShown
)

func (s State) String() string {
	switch s {
	case Sending:
		return "sending"
	case ErrorShown:
		return "error"
	default:
		return "idle"
	}
}

// DefaultMaxUpload is the upload ceiling when none is configured.
const DefaultMaxUpload int64 = 50 << 20

var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrRequestInFlight = errors.New("a request is already in flight")
)

// ValidationError is a request rejected before anything was sent.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Asker sends questions.
type Asker interface {
	Ask(ctx context.Context, question string) (*api.AskResponse, error)
}

// Clearer resets the backend conversation.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Uploader sends a data file.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*api.MessageResponse, error)
}

// Controller sequences questions and maps replies onto the transcript.
type Controller struct {
	transcript Transcript
	state      State
	clearing   bool
	maxUpload  int64

	// Now is the clock used for timestamps.
	Now func() time.Time
}

// NewController creates an idle controller. maxUpload <= 0 means
// DefaultMaxUpload.
func NewController(maxUpload int64) *Controller {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Controller{maxUpload: maxUpload, Now: time.Now}
}

func (c *Controller) State() State { return c.state }

// Transcript exposes the message log for reading.
func (c *Controller) Transcript() *Transcript { return &c.transcript }

// Messages is shorthand for Transcript().Messages().
func (c *Controller) Messages() []Message { return c.transcript.Messages() }

// Begin validates input, appends it as a User message and enters Sending.
// It returns the trimmed question to send. Nothing changes on error.
func (c *Controller) Begin(input string) (string, error) {
	if c.state == Sending || c.clearing {
		return "", ErrRequestInFlight
	}
	q := strings.TrimSpace(input)
	if q == "" {
		return "", ErrEmptyQuestion
	}

	c.transcript.Append(Message{Role: User, Content: q, Timestamp: c.stamp()})
	c.state = Sending
	return q, nil
}

// Complete appends the Bot reply for the request started by Begin and
// leaves Sending. A payload error is shown verbatim; a failed request is
// shown as "Error: <reason>".
func (c *Controller) Complete(resp *api.AskResponse, err error) Message {
	msg := Message{Role: Bot, Timestamp: c.stamp()}

	switch {
	case err != nil:
		msg.Content = "Error: " + err.Error()
		c.state = ErrorShown
		applog.Event("CHAT", "ask failed: %v", err)
	case resp == nil:
		msg.Content = "Error: empty response"
		c.state = ErrorShown
	case resp.Error != "":
		msg.Content = resp.Error
		c.state = ErrorShown
		applog.Event("CHAT", "ask returned error: %s", resp.Error)
	default:
		msg.Content = resp.Answer
		msg.Table = resp.Table
		msg.Image = resp.Image
		c.state = Idle
	}

	c.transcript.Append(msg)
	return msg
}

// Ask runs a whole request synchronously: Begin, the call, Complete.
// The returned error is only ever a Begin rejection; request failures
// become the returned Bot message.
func (c *Controller) Ask(ctx context.Context, client Asker, input string) (Message, error) {
	q, err := c.Begin(input)
	if err != nil {
		return Message{}, err
	}
	resp, err := client.Ask(ctx, q)
	return c.Complete(resp, err), nil
}

// Clear wipes the backend conversation and, only if that succeeded, the
// local transcript.
func (c *Controller) Clear(ctx context.Context, client Clearer) error {
	if err := c.BeginClear(); err != nil {
		return err
	}
	return c.CompleteClear(client.Clear(ctx))
}

// BeginClear marks a clear as in flight. It is rejected while a question
// is unanswered, and questions are rejected until CompleteClear, so a
// reply never lands in a transcript that was wiped under it.
func (c *Controller) BeginClear() error {
	if c.state == Sending || c.clearing {
		return ErrRequestInFlight
	}
	c.clearing = true
	return nil
}

// CompleteClear ends the clear started by BeginClear with the backend's
// result. The transcript is reset only when err is nil.
func (c *Controller) CompleteClear(err error) error {
	c.clearing = false
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	c.resetTranscript()
	return nil
}

func (c *Controller) resetTranscript() {
	c.transcript.Reset()
	if c.state == ErrorShown {
		c.state = Idle
	}
}

// ValidateUpload checks a local file before upload.
func (c *Controller) ValidateUpload(path string) (os.FileInfo, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".xml" {
		return nil, &ValidationError{Reason: fmt.Sprintf("Unsupported file type %q. Use a .csv or .xml file.", ext)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &ValidationError{Reason: path + " is a directory"}
	}
	if info.Size() > c.maxUpload {
		return nil, &ValidationError{Reason: fmt.Sprintf("File size too big. Max %d MB.", c.maxUpload>>20)}
	}
	return info, nil
}

// Upload validates and sends a data file. Validation failures send nothing.
func (c *Controller) Upload(ctx context.Context, client Uploader, path string) (*api.MessageResponse, error) {
	if _, err := c.ValidateUpload(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	resp, err := client.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		applog.Event("CHAT", "upload %s failed: %v", path, err)
		return nil, err
	}
	applog.Event("CHAT", "uploaded %s", path)
	return resp, nil
}

func (c *Controller) stamp() string {
	return c.Now().Format("15:04")
}
