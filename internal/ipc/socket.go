package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"github.com/bnema/waycomp/internal/logger"
	"golang.org/x/sys/unix"
	"google.golang.org/protobuf/types/known/structpb"
)

var ipcLog = logger.With("ipc")

// Handler executes control commands.
type Handler interface {
	HandleCommand(ctx context.Context, command string, args map[string]interface{}) (map[string]interface{}, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, command string, args map[string]interface{}) (map[string]interface{}, error)

func (f HandlerFunc) HandleCommand(ctx context.Context, command string, args map[string]interface{}) (map[string]interface{}, error) {
	return f(ctx, command, args)
}

// SocketServer handles incoming IPC connections
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	handler    Handler
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool

	// peerAllowed decides whether a connecting uid may issue commands.
	peerAllowed func(uid uint32) bool
}

// NewSocketServer creates a socket server at path. An empty path selects
// DefaultSocketPath.
func NewSocketServer(path string, handler Handler) (*SocketServer, error) {
	if path == "" {
		p, err := DefaultSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
		path = p
	}
	uid := uint32(os.Getuid())
	return &SocketServer{
		socketPath: path,
		handler:    handler,
		peerAllowed: func(peer uint32) bool {
			return peer == uid || peer == 0
		},
	}, nil
}

// Path returns the socket path.
func (s *SocketServer) Path() string {
	return s.socketPath
}

// Start starts the socket server
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	ipcLog.Infof("IPC socket server started at %s", s.socketPath)
	return nil
}

// Stop stops the socket server
func (s *SocketServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.wg.Wait()
	os.RemoveAll(s.socketPath)

	ipcLog.Info("IPC socket server stopped")
}

func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			ipcLog.Errorf("Failed to accept connection: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// peerUID returns the uid of the process on the other end of conn.
func peerUID(conn net.Conn) (uint32, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, fmt.Errorf("not a unix connection")
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return 0, err
	}
	if credErr != nil {
		return 0, credErr
	}
	return cred.Uid, nil
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock reads when the server stops.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	uid, err := peerUID(conn)
	if err != nil {
		ipcLog.Warnf("Rejecting connection without credentials: %v", err)
		return
	}
	if !s.peerAllowed(uid) {
		ipcLog.Warnf("Rejecting connection from uid %d", uid)
		writeMessage(conn, NewErrorResponse("permission denied"))
		return
	}
	ipcLog.Debug("New IPC connection established", "uid", uid)

	for {
		msg, err := readMessage(conn)
		if err != nil {
			ipcLog.Debugf("Connection closed or read error: %v", err)
			return
		}
		if err := writeMessage(conn, s.handleMessage(ctx, msg)); err != nil {
			ipcLog.Errorf("Failed to send response: %v", err)
			return
		}
	}
}

func (s *SocketServer) handleMessage(ctx context.Context, msg *structpb.Struct) *structpb.Struct {
	command, args, err := ParseRequest(msg)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid request: %v", err))
	}

	fields, err := s.handler.HandleCommand(ctx, command, args)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewResponse(fields)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// DefaultSocketPath returns $XDG_RUNTIME_DIR/waycomp.sock, or a per-user
// socket in /tmp when no runtime directory is set.
func DefaultSocketPath() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "waycomp.sock"), nil
	}

	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join("/tmp", fmt.Sprintf("waycomp-%s.sock", currentUser.Username)), nil
}
