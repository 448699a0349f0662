// Package transmission implements the subset of the Transmission RPC protocol
// seedprune needs: listing torrents, stopping them, and removing them.
package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/blackwell-systems/seedprune/internal/torrent"
)

const (
	sessionIDHeader = "X-Transmission-Session-Id"

	DefaultHost    = "localhost"
	DefaultPort    = 9091
	DefaultPath    = "/transmission/rpc"
	DefaultTimeout = 30 * time.Second
)

// torrentFields are requested on every torrent-get.
var torrentFields = []string{
	"hashString", "name", "status", "error", "errorString",
	"uploadRatio", "secondsSeeding", "trackers",
}

// Config holds the configuration for a Transmission client.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	Path     string
	Timeout  time.Duration
	// RateLimit caps RPC calls per second. Zero means unlimited.
	RateLimit float64
}

// Client is a Transmission RPC client. It is safe for concurrent use.
type Client struct {
	config     Config
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu        sync.Mutex
	sessionID string
}

// New creates a new Transmission client. Zero-valued fields fall back to the
// daemon defaults.
func New(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}

	c := &Client{
		config:     cfg,
		endpoint:   fmt.Sprintf("%s://%s:%d/%s", scheme, cfg.Host, cfg.Port, strings.TrimPrefix(cfg.Path, "/")),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Endpoint returns the RPC URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Ping checks the connection and returns the daemon version.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var args struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, "session-get", nil, &args); err != nil {
		return "", &torrent.RemoteError{Op: "ping", Err: err}
	}
	return args.Version, nil
}

// ListTorrents returns a fresh snapshot of every torrent on the daemon, in the
// order the daemon reports them.
func (c *Client) ListTorrents(ctx context.Context) ([]torrent.Snapshot, error) {
	var args struct {
		Torrents []rpcTorrent `json:"torrents"`
	}
	req := map[string]interface{}{"fields": torrentFields}
	if err := c.call(ctx, "torrent-get", req, &args); err != nil {
		return nil, &torrent.RemoteError{Op: "list", Err: err}
	}

	snaps := make([]torrent.Snapshot, 0, len(args.Torrents))
	for i := range args.Torrents {
		snaps = append(snaps, args.Torrents[i].snapshot())
	}
	return snaps, nil
}

// StopTorrent stops the torrent with the given info hash.
func (c *Client) StopTorrent(ctx context.Context, id string) error {
	req := map[string]interface{}{"ids": []string{id}}
	if err := c.call(ctx, "torrent-stop", req, nil); err != nil {
		return &torrent.RemoteError{Op: "stop", TorrentID: id, Err: err}
	}
	return nil
}

// RemoveTorrent removes the torrent with the given info hash. Data on disk is
// deleted only when deleteData is set.
func (c *Client) RemoveTorrent(ctx context.Context, id string, deleteData bool) error {
	req := map[string]interface{}{
		"ids":               []string{id},
		"delete-local-data": deleteData,
	}
	if err := c.call(ctx, "torrent-remove", req, nil); err != nil {
		return &torrent.RemoteError{Op: "remove", TorrentID: id, Err: err}
	}
	return nil
}

// rpcRequest represents a Transmission RPC request.
type rpcRequest struct {
	Method    string                 `json:"method"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// rpcResponse represents a Transmission RPC response.
type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, args map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// One retry after the daemon hands out a new session id.
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		resp, err := c.do(ctx, body)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusConflict && attempt == 0 {
			err := c.handleSessionConflict(resp)
			resp.Body.Close()
			if err != nil {
				return err
			}
			continue
		}

		rpcResp, err := parseRPCResponse(resp)
		resp.Body.Close()
		if err != nil {
			return err
		}
		if out != nil && len(rpcResp.Arguments) > 0 {
			if err := json.Unmarshal(rpcResp.Arguments, out); err != nil {
				return fmt.Errorf("failed to decode %s arguments: %w", method, err)
			}
		}
		return nil
	}
}

func (c *Client) do(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.sessionID != "" {
		req.Header.Set(sessionIDHeader, c.sessionID)
	}
	c.mu.Unlock()
	if c.config.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.config.Username + ":" + c.config.Password))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	return resp, nil
}

func (c *Client) handleSessionConflict(resp *http.Response) error {
	id := resp.Header.Get(sessionIDHeader)
	if id == "" {
		return fmt.Errorf("received 409 but no session ID in response")
	}
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
	return nil
}

func parseRPCResponse(resp *http.Response) (*rpcResponse, error) {
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, torrent.ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if rpcResp.Result != "success" {
		if strings.Contains(strings.ToLower(rpcResp.Result), "not found") {
			return nil, fmt.Errorf("%w: %s", torrent.ErrNotFound, rpcResp.Result)
		}
		return nil, fmt.Errorf("RPC error: %s", rpcResp.Result)
	}

	return &rpcResp, nil
}
