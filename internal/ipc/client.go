package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client is a synchronous connection to a running daemon
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to the daemon's socket
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Call sends one command and waits for its response. Push messages that
// arrive in between are skipped.
func (c *Client) Call(ctx context.Context, cmd CommandType, data interface{}) (*Response, error) {
	req, err := NewRequest(cmd, data)
	if err != nil {
		return nil, err
	}
	payload, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", cmd, err)
		}
		var probe struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(line, &probe) == nil && probe.Type != "" {
			continue
		}
		return DecodeResponse(line)
	}
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
