// Package api is the client for the analysis backend's HTTP contract.
//
// Every endpoint is an opaque request/response exchange. The client adds
// the bearer token when one is held, keeps the backend's session cookies
// for the life of the process, and maps failures onto TransportError,
// StatusError and AppError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/publicsuffix"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
)

// TokenSource supplies the current bearer token; "" means none.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Options configures a Client.
type Options struct {
	BaseURL string
	Tokens  TokenSource

	// RetryMax bounds retries of idempotent status checks. Mutating
	// requests are never retried.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client talks to the backend.
type Client struct {
	baseURL string
	tokens  TokenSource

	// once is used for every mutating request, retry for GETs.
	once  *http.Client
	retry *http.Client
}

// New creates a client. Both underlying HTTP clients share one cookie jar.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if opts.Tokens == nil {
		opts.Tokens = StaticToken("")
	}
	if opts.RetryWaitMin == 0 {
		opts.RetryWaitMin = 500 * time.Millisecond
	}
	if opts.RetryWaitMax == 0 {
		opts.RetryWaitMax = 5 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		tokens:  opts.Tokens,
		once:    newHTTPClient(0, opts, jar),
		retry:   newHTTPClient(opts.RetryMax, opts, jar),
	}, nil
}

func newHTTPClient(retryMax int, opts Options, jar http.CookieJar) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	rc.Logger = nil
	// Hand the last response back instead of a "giving up" error so that
	// status codes survive exhausted retries.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	hc := rc.StandardClient()
	hc.Jar = jar
	return hc
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// URL resolves a backend-relative path such as "/assets/x.png".
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Ask posts a question. A payload "error" field is returned in the
// response, not as an error; callers show it verbatim.
func (c *Client) Ask(ctx context.Context, question string) (*AskResponse, error) {
	var out AskResponse
	if err := c.doJSON(ctx, c.once, "ask", http.MethodPost, "/ask", askRequest{Question: question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clear resets the backend conversation. Only a 2xx is success.
func (c *Client) Clear(ctx context.Context) error {
	return c.doJSON(ctx, c.once, "clear", http.MethodPost, "/clear", nil, nil)
}

// Upload sends r as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*MessageResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("upload: read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	body, err := c.do(ctx, c.once, "upload", http.MethodPost, "/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	var out MessageResponse
	if err := decode("upload", body, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &AppError{Op: "upload", Message: out.Error}
	}
	return &out, nil
}

// ConnectDB forwards credentials to the backend.
func (c *Client) ConnectDB(ctx context.Context, creds Credentials) (*ConnectResponse, error) {
	var out ConnectResponse
	if err := c.doJSON(ctx, c.once, "connect", http.MethodPost, "/connect_db", creds, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &AppError{Op: "connect", Message: out.Error}
	}
	return &out, nil
}

// Disconnect asks the backend to drop the database session.
func (c *Client) Disconnect(ctx context.Context) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.doJSON(ctx, c.once, "disconnect", http.MethodPost, "/disconnect", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshTables returns the backend's current table list.
func (c *Client) RefreshTables(ctx context.Context) ([]string, error) {
	var out tablesResponse
	if err := c.doJSON(ctx, c.once, "refresh tables", http.MethodPost, "/refresh_tables", nil, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &AppError{Op: "refresh tables", Message: out.Error}
	}
	return out.Tables, nil
}

// CheckStatus reports whether the backend holds a live connection. It is
// the only retried endpoint.
func (c *Client) CheckStatus(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.doJSON(ctx, c.retry, "check status", http.MethodGet, "/check_connection_status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SwitchMode selects the backend's analysis mode (ModeSQL or ModeCSV).
func (c *Client) SwitchMode(ctx context.Context, mode string) error {
	var out MessageResponse
	if err := c.doJSON(ctx, c.once, "switch mode", http.MethodPost, "/switch_mode", switchModeRequest{Mode: mode}, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return &AppError{Op: "switch mode", Message: out.Error}
	}
	return nil
}

// TablePreview fetches the first rows of table. Both {table:{headers,rows}}
// and a flat {headers,rows} payload are accepted.
func (c *Client) TablePreview(ctx context.Context, table string) (*explorer.TableData, error) {
	body, err := c.do(ctx, c.once, "preview", http.MethodPost, "/get_table_preview", "application/json", jsonBody(previewRequest{Table: table}))
	if err != nil {
		return nil, err
	}
	return ParsePreview(body)
}

// ParsePreview decodes a preview payload in either accepted shape.
func ParsePreview(body []byte) (*explorer.TableData, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTableShape, err)
	}

	src := body
	if t, ok := raw["table"]; ok && !isNull(t) {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(t, &nested); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTableShape, err)
		}
		if !hasTableFields(nested) {
			return nil, ErrTableShape
		}
		src = t
	} else if !hasTableFields(raw) {
		if e, ok := raw["error"]; ok {
			var msg string
			if json.Unmarshal(e, &msg) == nil && msg != "" {
				return nil, &AppError{Op: "preview", Message: msg}
			}
		}
		return nil, ErrTableShape
	}

	var data explorer.TableData
	if err := json.Unmarshal(src, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTableShape, err)
	}
	return &data, nil
}

// hasTableFields reports whether obj carries headers or rows.
func hasTableFields(obj map[string]json.RawMessage) bool {
	_, hasHeaders := obj["headers"]
	_, hasRows := obj["rows"]
	return hasHeaders || hasRows
}

// ImageAvailable probes an asset with HEAD.
func (c *Client) ImageAvailable(ctx context.Context, path string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.URL(path), nil)
	if err != nil {
		return false
	}
	resp, err := c.once.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) doJSON(ctx context.Context, hc *http.Client, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		body = jsonBody(in)
		contentType = "application/json"
	}
	respBody, err := c.do(ctx, hc, op, method, path, contentType, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(op, respBody, out)
}

func (c *Client) do(ctx context.Context, hc *http.Client, op, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	id := uuid.NewString()
	start := time.Now()
	LogRequest(id, method, path)

	resp, err := hc.Do(req)
	if err != nil {
		LogResponse(id, path, 0, nil, time.Since(start), err)
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		LogResponse(id, path, resp.StatusCode, nil, time.Since(start), err)
		return nil, &TransportError{Op: op, Err: err}
	}
	LogResponse(id, path, resp.StatusCode, respBody, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Message: errorText(respBody)}
	}
	return respBody, nil
}

// errorText extracts the server's explanation from an error body: the
// "error" field, else "answer" (used by /ask on bad input), else nothing.
func errorText(body []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Answer string `json:"answer"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Answer
}

func decode(op string, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func jsonBody(v any) io.Reader {
	data, err := json.Marshal(v)
	if err != nil {
		// Only plain request structs are marshalled here.
		panic(fmt.Sprintf("api: marshal request: %v", err))
	}
	return bytes.NewReader(data)
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
