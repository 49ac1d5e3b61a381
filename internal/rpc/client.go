package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/untoldecay/icpc/internal/apierr"
)

// ClientVersion is icpcctl's build version, sent on every request for
// Server.checkVersionCompatibility to compare against ServerVersion.
// Overridden at startup from cmd/icpcctl's ldflags-injected Version.
var ClientVersion = "0.0.0"

// Client dials an icpcd control socket and issues one request per call,
// mirroring the teacher's line-delimited-JSON RPC client.
type Client struct {
	conn       net.Conn
	socketPath string
	timeout    time.Duration
}

// Dial connects to the daemon listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	return DialTimeout(socketPath, 2*time.Second)
}

// DialTimeout connects with an explicit dial timeout, used by icpcctl to
// fail fast when no daemon is running for a workspace.
func DialTimeout(socketPath string, dialTimeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn, socketPath: socketPath, timeout: 15 * time.Second}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends operation with the given args (marshaled to JSON) and decodes
// the result into out, if out is non-nil. Returns the *apierr.Error the
// daemon reported, if any, as a plain Go error.
func (c *Client) Call(operation string, args any, out any) error {
	var argsJSON json.RawMessage
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("rpc: marshal args: %w", err)
		}
		argsJSON = raw
	}

	req := Request{Operation: operation, Args: argsJSON, ClientVersion: ClientVersion}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("rpc: marshal request: %w", err)
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("rpc: set deadline: %w", err)
		}
	}

	w := bufio.NewWriter(c.conn)
	if _, err := w.Write(reqJSON); err != nil {
		return fmt.Errorf("rpc: write request: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("rpc: write newline: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("rpc: flush: %w", err)
	}

	r := bufio.NewReader(c.conn)
	line, err := r.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("rpc: read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("rpc: unmarshal response: %w", err)
	}
	if !resp.OK {
		if resp.Error != nil {
			return resp.Error
		}
		return apierr.New(apierr.KindInternal, "daemon returned a failure with no error detail")
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("rpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// Ping verifies the daemon is alive and returns its self-reported version.
func (c *Client) Ping() (PingResult, error) {
	var out PingResult
	err := c.Call(OpPing, nil, &out)
	return out, err
}

// Status fetches daemon identity and uptime.
func (c *Client) Status() (StatusResult, error) {
	var out StatusResult
	err := c.Call(OpStatus, nil, &out)
	return out, err
}

// Health runs the integrity sweep and reports whether the daemon is
// healthy.
func (c *Client) Health() (HealthResult, error) {
	var out HealthResult
	err := c.Call(OpHealth, nil, &out)
	return out, err
}

// Shutdown asks the daemon to stop gracefully.
func (c *Client) Shutdown() error {
	return c.Call(OpShutdown, nil, nil)
}
