package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, h Handler, allow func(uint32) bool) *SocketServer {
	t.Helper()
	server, err := NewSocketServer(filepath.Join(t.TempDir(), "test.sock"), h)
	require.NoError(t, err)
	if allow != nil {
		server.peerAllowed = allow
	}
	require.NoError(t, server.Start())
	t.Cleanup(server.Stop)
	return server
}

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	path, err := DefaultSocketPath()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/waycomp.sock", path)

	server, err := NewSocketServer("", nil)
	require.NoError(t, err)
	assert.Equal(t, path, server.Path())
}

func TestSocketServerStartStop(t *testing.T) {
	server, err := NewSocketServer(filepath.Join(t.TempDir(), "test.sock"), nil)
	require.NoError(t, err)

	require.NoError(t, server.Start())
	require.NoError(t, server.Start(), "starting twice is a no-op")

	info, err := os.Stat(server.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	server.Stop()
	server.Stop()
	_, err = os.Stat(server.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestClientServer(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	server := startServer(t, HandlerFunc(func(_ context.Context, command string, args map[string]interface{}) (map[string]interface{}, error) {
		mu.Lock()
		seen = append(seen, command)
		mu.Unlock()
		switch command {
		case CommandStatus:
			return map[string]interface{}{"views": 2}, nil
		case CommandRecord:
			return map[string]interface{}{"output": args["output"]}, nil
		default:
			return nil, errors.New("unknown command")
		}
	}), nil)

	client, err := NewClient(server.Path())
	require.NoError(t, err)
	assert.True(t, client.IsRunning())

	status, err := client.Status()
	require.NoError(t, err)
	assert.Equal(t, float64(2), status["views"])

	reply, err := client.Send(CommandRecord, map[string]interface{}{"output": "headless"})
	require.NoError(t, err)
	assert.Equal(t, "headless", reply["output"])

	_, err = client.Send("launch-missiles", nil)
	assert.EqualError(t, err, "server error: unknown command")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{CommandStatus, CommandStatus, CommandRecord, "launch-missiles"}, seen)
}

func TestConnectionStaysOpen(t *testing.T) {
	var calls atomic.Int32
	server := startServer(t, HandlerFunc(func(context.Context, string, map[string]interface{}) (map[string]interface{}, error) {
		calls.Add(1)
		return nil, nil
	}), nil)

	conn, err := net.Dial("unix", server.Path())
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 3; i++ {
		req, err := NewRequest(CommandStatus, nil)
		require.NoError(t, err)
		require.NoError(t, writeMessage(conn, req))
		resp, err := readMessage(conn)
		require.NoError(t, err)
		_, err = ParseResponse(resp)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestPeerRejected(t *testing.T) {
	server := startServer(t, HandlerFunc(func(context.Context, string, map[string]interface{}) (map[string]interface{}, error) {
		t.Error("handler must not run")
		return nil, nil
	}), func(uint32) bool { return false })

	client, err := NewClient(server.Path())
	require.NoError(t, err)
	_, err = client.Status()
	assert.EqualError(t, err, "server error: permission denied")
}

func TestClientNotRunning(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "absent.sock"))
	require.NoError(t, err)
	_, err = client.Status()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, client.IsRunning())
}
