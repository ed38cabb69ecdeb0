// Package client talks to the block server: the persistence side of a session.
//
// [Client] mirrors the server's REST endpoints. Request bodies are encoded with
// the configured [codec.Codec]; responses are decoded with the codec named by
// their Content-Type. Every request carries an X-Request-ID header so client
// and server logs can be correlated.
//
// Non-2xx responses become [*APIError]. Transport failures are returned as-is.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog"

	"github.com/surrealdb/blocktree/internal/rand"
	"github.com/surrealdb/blocktree/pkg/codec"
)

const (
	DefaultTimeout  = 30 * time.Second
	HeaderRequestID = "X-Request-ID"
)

// Client is the HTTP implementation of Persistence. It is safe for concurrent
// use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	codec      codec.Codec
	log        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithCodec(cd codec.Codec) Option {
	return func(c *Client) { c.codec = cd }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL, for example "http://localhost:8080/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		codec:      codec.JSON(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ Persistence = (*Client)(nil)

func (c *Client) GetPage(ctx context.Context, pageID string) ([]RawBlock, error) {
	return c.blocks(ctx, http.MethodGet, "/pages/"+url.PathEscape(pageID), nil)
}

func (c *Client) CreateBlock(ctx context.Context, pageID string, req CreateBlockRequest) (RawBlock, error) {
	var out RawBlock
	err := c.call(ctx, http.MethodPost, "/pages/"+url.PathEscape(pageID)+"/blocks", req, &out)
	return out, err
}

func (c *Client) BatchCreate(ctx context.Context, pageID string, req BatchRequest) (BatchResponse, error) {
	var out BatchResponse
	err := c.call(ctx, http.MethodPost, "/pages/"+url.PathEscape(pageID)+"/blocks/batch", req, &out)
	return out, err
}

func (c *Client) PatchBlock(ctx context.Context, blockID string, fields map[string]any) error {
	return c.call(ctx, http.MethodPatch, "/blocks/"+url.PathEscape(blockID), fields, nil)
}

func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	return c.call(ctx, http.MethodDelete, "/blocks/"+url.PathEscape(blockID), nil, nil)
}

func (c *Client) DuplicateSubtree(ctx context.Context, blockID string) ([]RawBlock, error) {
	return c.blocks(ctx, http.MethodPost, "/blocks/"+url.PathEscape(blockID)+"/duplicate-subtree", nil)
}

func (c *Client) TransferSubtree(ctx context.Context, pageID string, req TransferRequest) ([]RawBlock, error) {
	return c.blocks(ctx, http.MethodPost, "/pages/"+url.PathEscape(pageID)+"/transfer-subtree", req)
}

// blocks calls an endpoint answering {"blocks": [...]}.
func (c *Client) blocks(ctx context.Context, method, path string, body any) ([]RawBlock, error) {
	var out blocksEnvelope
	if err := c.call(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return out.Blocks, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, target any) error {
	requestID := rand.NewRequestID()
	start := time.Now()

	resp, err := c.doRequest(ctx, method, path, requestID, body)
	if err != nil {
		c.log.Debug().Str("method", method).Str("path", path).Str("request_id", requestID).Err(err).Msg("request failed")
		return err
	}

	err = c.decodeResponse(resp, method, path, requestID, target)
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("request done")
	return err
}

func (c *Client) doRequest(ctx context.Context, method, path, requestID string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := c.codec.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", c.codec.ContentType)
	}
	req.Header.Set("Accept", c.codec.ContentType)
	req.Header.Set(HeaderRequestID, requestID)

	return c.httpClient.Do(req)
}

func (c *Client) decodeResponse(resp *http.Response, method, path, requestID string, target any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
			RequestID:  requestID,
		}
	}

	if target == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}

	dec := codec.ForContentType(resp.Header.Get("Content-Type"), c.codec)
	if dec.Name == codec.NameJSON {
		if err := checkEnvelope(data, target); err != nil {
			return err
		}
	}
	if err := dec.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// checkEnvelope rejects JSON block lists whose "blocks" member is not an array.
func checkEnvelope(data []byte, target any) error {
	if _, ok := target.(*blocksEnvelope); !ok {
		return nil
	}
	_, dataType, _, err := jsonparser.Get(data, "blocks")
	if err != nil && dataType != jsonparser.NotExist {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if dataType != jsonparser.Array && dataType != jsonparser.Null && dataType != jsonparser.NotExist {
		return fmt.Errorf("%w: blocks is %s, not an array", ErrInvalidResponse, dataType)
	}
	return nil
}
