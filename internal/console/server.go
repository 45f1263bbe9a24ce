// Package console serves a read-mostly status console over SSH. Each line a
// session sends is a control command, the same ones the control socket
// accepts; "ssh host status" runs a single command and exits.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/ui"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	gossh "golang.org/x/crypto/ssh"
)

var consoleLog = logger.With("console")

// DefaultMaxSessions bounds concurrent console sessions.
const DefaultMaxSessions = 4

// Options configure a Server.
type Options struct {
	Address     string
	HostKeyPath string
	MaxSessions int

	// Approve is asked about keys outside the whitelist when only
	// whitelisted keys are accepted. Approved keys are added to the
	// whitelist. Nil denies them.
	Approve func(addr, fingerprint string) bool
}

// Server is the SSH console.
type Server struct {
	opts    Options
	handler ipc.Handler

	sshServer *ssh.Server
	listener  net.Listener

	mu       sync.Mutex
	sessions map[string]ssh.Session

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New returns a console running commands through handler.
func New(handler ipc.Handler, opts Options) *Server {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	return &Server{
		opts:     opts,
		handler:  handler,
		sessions: make(map[string]ssh.Session),
		stop:     make(chan struct{}),
	}
}

// Start listens on the configured address and serves until ctx is done or
// Stop is called. A missing host key is generated.
func (s *Server) Start(ctx context.Context) error {
	server, err := wish.NewServer(
		wish.WithAddress(s.opts.Address),
		wish.WithHostKeyPath(s.opts.HostKeyPath),
		wish.WithPublicKeyAuth(s.publicKeyAuth),
		wish.WithMiddleware(
			s.sessionMiddleware(),
			s.loggingMiddleware(),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create SSH server: %w", err)
	}

	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Address, err)
	}
	s.sshServer = server
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		consoleLog.Infof("SSH console listening on %s", listener.Addr())
		if err := server.Serve(listener); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			consoleLog.Errorf("SSH console error: %v", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stop:
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open session.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)

		if s.sshServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.sshServer.Shutdown(ctx)
		}

		s.mu.Lock()
		for _, sess := range s.sessions {
			_ = sess.Close()
		}
		s.sessions = make(map[string]ssh.Session)
		s.mu.Unlock()

		s.wg.Wait()
	})
}

func (s *Server) publicKeyAuth(ctx ssh.Context, key ssh.PublicKey) bool {
	fingerprint := gossh.FingerprintSHA256(key)
	addr := ctx.RemoteAddr().String()

	if config.IsSSHKeyWhitelisted(fingerprint) {
		consoleLog.Debug("SSH key is whitelisted", "key", fingerprint)
		return true
	}
	if !config.Get().Console.WhitelistOnly {
		consoleLog.Info("Accepting SSH key (whitelist-only mode disabled)", "key", fingerprint, "addr", addr)
		return true
	}
	if s.opts.Approve != nil && s.opts.Approve(addr, fingerprint) {
		if err := config.AddSSHKeyToWhitelist(fingerprint); err != nil {
			consoleLog.Errorf("Failed to add key to whitelist: %v", err)
		}
		consoleLog.Info("SSH key approved", "key", fingerprint, "addr", addr)
		return true
	}
	consoleLog.Info("SSH key denied", "key", fingerprint, "addr", addr)
	return false
}

func (s *Server) loggingMiddleware() wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			consoleLog.Debugf("SSH session started: user=%s addr=%s", sess.User(), sess.RemoteAddr())
			h(sess)
			consoleLog.Debugf("SSH session ended: addr=%s", sess.RemoteAddr())
		}
	}
}

// sessionMiddleware is the innermost handler: it owns the session.
func (s *Server) sessionMiddleware() wish.Middleware {
	return func(ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			id := sess.Context().SessionID()

			s.mu.Lock()
			if len(s.sessions) >= s.opts.MaxSessions {
				s.mu.Unlock()
				consoleLog.Infof("Rejecting session - too many sessions addr=%s", sess.RemoteAddr())
				fmt.Fprintln(sess.Stderr(), "too many console sessions")
				_ = sess.Exit(1)
				return
			}
			s.sessions[id] = sess
			s.mu.Unlock()

			defer func() {
				s.mu.Lock()
				delete(s.sessions, id)
				s.mu.Unlock()
			}()

			if cmd := sess.Command(); len(cmd) > 0 {
				code := 0
				if err := s.execute(sess.Context(), sess, cmd); err != nil {
					fmt.Fprintln(sess.Stderr(), ui.ErrorStyle.Render(err.Error()))
					code = 1
				}
				_ = sess.Exit(code)
				return
			}
			s.interactive(sess)
			_ = sess.Exit(0)
		}
	}
}

// interactive reads one command per line until the session ends.
func (s *Server) interactive(sess ssh.Session) {
	fmt.Fprintln(sess, ui.FormatAppHeader("CONSOLE", "type help for commands"))
	if err := s.execute(sess.Context(), sess, []string{ipc.CommandStatus}); err != nil {
		fmt.Fprintln(sess, ui.ErrorStyle.Render(err.Error()))
	}

	scanner := bufio.NewScanner(sess)
	for {
		fmt.Fprint(sess, ui.InfoStyle.Render("> "))
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return
		case "help":
			fmt.Fprintln(sess, Help())
			continue
		}
		if err := s.execute(sess.Context(), sess, fields); err != nil {
			fmt.Fprintln(sess, ui.ErrorStyle.Render(err.Error()))
		}

		select {
		case <-s.stop:
			return
		default:
		}
	}
}

// execute runs one command line and writes the rendered reply to w.
func (s *Server) execute(ctx context.Context, w io.Writer, line []string) error {
	command, args, err := ParseLine(line)
	if err != nil {
		return err
	}
	fields, err := s.handler.HandleCommand(ctx, command, args)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	// Round trip through the wire form so replies render the same way they
	// do for socket clients.
	resp, err := ipc.NewResponse(fields)
	if err != nil {
		return err
	}
	if fields, err = ipc.ParseResponse(resp); err != nil {
		return err
	}
	if command == ipc.CommandStatus {
		fmt.Fprintln(w, ui.StatusView(fields))
	} else {
		fmt.Fprintln(w, ui.ReplyView(command, fields))
	}
	return nil
}

// ParseLine splits a command line into a command and key=value arguments.
func ParseLine(line []string) (string, map[string]interface{}, error) {
	if len(line) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	var args map[string]interface{}
	for _, f := range line[1:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return "", nil, fmt.Errorf("bad argument %q, want key=value", f)
		}
		if args == nil {
			args = make(map[string]interface{})
		}
		args[k] = v
	}
	return line[0], args, nil
}

// Help lists the console commands.
func Help() string {
	return strings.Join([]string{
		ui.InfoStyle.Render("Commands:"),
		"  " + ui.FormatControl(ipc.CommandStatus, "outputs, seats and views"),
		"  " + ui.FormatControl(ipc.CommandOverview, "toggle the window overview"),
		"  " + ui.FormatControl(ipc.CommandZoomIn+" / "+ipc.CommandZoomOut, "zoom the output under the pointer"),
		"  " + ui.FormatControl(ipc.CommandRecord+" [output=NAME]", "start or stop recording"),
		"  " + ui.FormatControl(ipc.CommandScreenshot+" path=FILE [output=NAME]", "save a PNG on the host"),
		"  " + ui.FormatControl("quit", "close the session"),
	}, "\n")
}
