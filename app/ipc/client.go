package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

const dialTimeout = 2 * time.Second

// Client is the NDJSON socket client used by frontends. Calls are
// serialized; one connection handles one request at a time.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	scanner *bufio.Scanner
}

// Dial connects to the daemon socket. A failure to connect maps to
// CodeDaemonNotRunning so frontends can distinguish "not running" from
// a request that failed.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, &Error{
			Code:    CodeDaemonNotRunning,
			Message: fmt.Sprintf("daemon not running at %s: %v", socketPath, err),
		}
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Client{conn: conn, scanner: scanner}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request and waits for its response. A protocol-level
// error comes back as *Error.
func (c *Client) Call(method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := Request{
		ID:     json.RawMessage(fmt.Sprintf("%q", uuid.NewString())),
		Method: method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = raw
	}

	if err := json.NewEncoder(c.conn).Encode(&req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed by daemon")
	}

	var resp struct {
		ID     json.RawMessage `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
