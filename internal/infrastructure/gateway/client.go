package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxResponseBytes = 4 << 20

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token() string
}

// File is a multipart file part.
type File struct {
	FieldName   string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Options tunes a Client.
type Options struct {
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	HTTP           *http.Client
}

// Client is an authenticated HTTP adapter for the NeoNote backend.
type Client struct {
	baseURL        string
	tokens         TokenSource
	http           *http.Client
	requestTimeout time.Duration
	uploadTimeout  time.Duration
	logger         zerolog.Logger
}

// NewClient creates a gateway rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts Options, logger zerolog.Logger) *Client {
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 5 * time.Minute
	}
	return &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		tokens:         tokens,
		http:           httpClient,
		requestTimeout: opts.RequestTimeout,
		uploadTimeout:  opts.UploadTimeout,
		logger:         logger.With().Str("component", "gateway").Logger(),
	}
}

// Send performs a JSON request and returns the raw response body.
func (c *Client) Send(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, method, path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(ctx, req, method, path)
}

// SendMultipart streams file as multipart/form-data to path with POST.
func (c *Client) SendMultipart(ctx context.Context, path string, file File) (json.RawMessage, error) {
	field := file.FieldName
	if field == "" {
		field = "file"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	body := file.Body
	if body == nil {
		body = http.NoBody
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(file.FileName)))
		header.Set("Content-Type", contentType)

		part, err := mw.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	defer pr.Close()

	reqCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, http.MethodPost, path, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(ctx, req, http.MethodPost, path)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) do(parent context.Context, req *http.Request, method, path string) (json.RawMessage, error) {
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, parent.Err())
		}
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if parent.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, parent.Err())
		}
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, data),
		}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
