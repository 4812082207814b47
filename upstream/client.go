// Package upstream is the client for the third-party deepfake-detection API.
// The wire format is dictated entirely by that service; this package matches
// it byte-for-byte in request shape and never invents fields.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/veralens/veralensbackend/models"
	"github.com/veralens/veralensbackend/validation"
)

const (
	// DefaultTimeout bounds plain metadata GETs so they never hang
	// indefinitely on a stalled upstream.
	DefaultTimeout = 30 * time.Second

	// DefaultUploadTimeout bounds session-creation forwarding, which
	// carries the full image body.
	DefaultUploadTimeout = 60 * time.Second

	// DefaultImageMIME is served when upstream storage omits a content type.
	DefaultImageMIME = "image/jpeg"

	defaultUserAgent = "veralens-backend/1.0"

	// maxBodyBytes caps how much of any upstream response we will read.
	maxBodyBytes = 64 << 20
)

// Sentinel errors callers branch on with errors.Is.
var (
	ErrNotFound        = errors.New("upstream: not found")
	ErrRedirectBlocked = errors.New("upstream: storage fetch answered with a redirect")
)

// Error is a sanitized upstream failure. Detail is truncated before it is
// stored so raw upstream bodies never travel further than this package.
type Error struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upstream: %s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("upstream: %s failed with status %d: %s", e.Op, e.StatusCode, e.Detail)
}

// StorageKind selects which upstream storage directory to fetch from.
type StorageKind string

const (
	StorageOriginal StorageKind = "original"
	StorageFaces    StorageKind = "faces"
)

// StorageObject is a fetched binary with its declared content type.
type StorageObject struct {
	ContentType string
	Data        []byte
}

// Client talks to the upstream detection API. Fields are exported so tests
// can attach mock transports to the underlying HTTP clients.
type Client struct {
	BaseURL   string
	UserAgent string

	// Timeout bounds metadata GETs and storage fetches; UploadTimeout
	// bounds session creation.
	Timeout       time.Duration
	UploadTimeout time.Duration

	// HTTP handles uploads and metadata GETs.
	HTTP *http.Client

	// Storage handles binary fetches. Automatic redirect following is
	// disabled on it: a redirect response is a failure, not something to
	// follow, so the proxy cannot be bounced to an attacker-chosen host.
	Storage *http.Client
}

// New creates a client for the given upstream base URL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		UserAgent:     defaultUserAgent,
		Timeout:       DefaultTimeout,
		UploadTimeout: DefaultUploadTimeout,
		HTTP:          &http.Client{},
		Storage: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type uploadResponse struct {
	UUID string `json:"uuid"`
}

// Upload forwards an image to the upstream create-session endpoint as a
// multipart form and returns the upstream-assigned session UUID. This is the
// only non-idempotent call in the package.
func (c *Client) Upload(ctx context.Context, filename, contentType string, content io.Reader) (string, error) {
	body := &strings.Builder{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("upstream: failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("upstream: failed to buffer upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("upstream: failed to finalize multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload", strings.NewReader(body.String()))
	if err != nil {
		return "", fmt.Errorf("upstream: failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream: upload request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("upstream: failed to read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &Error{Op: "upload", StatusCode: resp.StatusCode, Detail: validation.TruncateDetail(string(data))}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{Op: "upload", StatusCode: resp.StatusCode, Detail: "malformed upload response"}
	}
	if parsed.UUID == "" {
		return "", &Error{Op: "upload", StatusCode: resp.StatusCode, Detail: "upload response missing session identifier"}
	}
	return parsed.UUID, nil
}

// GetSession fetches full session info. The raw JSON is returned alongside
// the decoded form so metadata endpoints can relay upstream bytes verbatim.
func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, []byte, error) {
	raw, err := c.getJSON(ctx, "session", c.BaseURL+"/"+id)
	if err != nil {
		return nil, nil, err
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, nil, &Error{Op: "session", StatusCode: http.StatusOK, Detail: "malformed session payload"}
	}
	return &session, raw, nil
}

type statusResponse struct {
	Status models.Status `json:"status"`
}

// GetStatus fetches just the session status.
func (c *Client) GetStatus(ctx context.Context, id string) (models.Status, error) {
	raw, err := c.getJSON(ctx, "status", c.BaseURL+"/"+id+"/status")
	if err != nil {
		return "", err
	}
	var parsed statusResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &Error{Op: "status", StatusCode: http.StatusOK, Detail: "malformed status payload"}
	}
	if parsed.Status == "" {
		return "", &Error{Op: "status", StatusCode: http.StatusOK, Detail: "status payload missing status field"}
	}
	return parsed.Status, nil
}

// SystemStatus fetches the upstream health JSON for passthrough.
func (c *Client) SystemStatus(ctx context.Context) ([]byte, error) {
	return c.getJSON(ctx, "system status", c.BaseURL+"/system/status")
}

// FetchStorage fetches a binary (face crop or original image) from upstream
// storage by bare filename. A redirect response is treated as a failure,
// never followed.
func (c *Client) FetchStorage(ctx context.Context, kind StorageKind, filename string) (*StorageObject, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	fetchURL := fmt.Sprintf("%s/storage/%s/%s", c.BaseURL, kind, url.PathEscape(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to create storage request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.Storage.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: storage fetch failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return nil, ErrRedirectBlocked
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, validation.MaxErrorDetailLength))
		return nil, &Error{Op: "storage fetch", StatusCode: resp.StatusCode, Detail: validation.TruncateDetail(string(data))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to read storage body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultImageMIME
	}
	return &StorageObject{ContentType: contentType, Data: data}, nil
}

// getJSON performs a bounded metadata GET and returns the raw body on 200.
func (c *Client) getJSON(ctx context.Context, op, fetchURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to create %s request: %w", op, err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to read %s response: %w", op, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Detail: validation.TruncateDetail(string(data))}
	}
	return data, nil
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) uploadTimeout() time.Duration {
	if c.UploadTimeout > 0 {
		return c.UploadTimeout
	}
	return DefaultUploadTimeout
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
