package ipc

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotRunning means nothing is listening on the socket.
var ErrNotRunning = errors.New("waycomp is not running")

// Client sends commands to a running compositor
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the socket at path. An empty path selects
// DefaultSocketPath.
func NewClient(path string) (*Client, error) {
	if path == "" {
		p, err := DefaultSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
		path = p
	}
	return &Client{socketPath: path, timeout: 5 * time.Second}, nil
}

// SetTimeout changes the per-request deadline.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Send runs command on the compositor and returns the reply fields.
func (c *Client) Send(command string, args map[string]interface{}) (map[string]interface{}, error) {
	req, err := NewRequest(command, args)
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	return ParseResponse(resp)
}

// Status asks for the compositor state.
func (c *Client) Status() (map[string]interface{}, error) {
	return c.Send(CommandStatus, nil)
}

// IsRunning reports whether a compositor answers on the socket.
func (c *Client) IsRunning() bool {
	_, err := c.Status()
	return err == nil
}

func (c *Client) roundTrip(msg *structpb.Struct) (*structpb.Struct, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isNotListening(err) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to connect to waycomp: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		ipcLog.Warnf("Failed to set connection deadline: %v", err)
	}

	if err := writeMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	resp, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

func isNotListening(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}
