package compositor

import (
	"fmt"

	"github.com/bnema/waycomp/internal/logger"
)

// Generic protocol error codes shared by every interface.
const (
	ErrorInvalidObject uint32 = 0
	ErrorInvalidMethod uint32 = 1
	ErrorNoMemory      uint32 = 2
)

// ProtocolError is a client-caused violation. It is reported to the
// offending client and never stops the compositor.
type ProtocolError struct {
	Code    uint32
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

// Client is a connected client. The wire transport is external, so a Client
// only records what the compositor wants to tell it about.
type Client struct {
	ID  uint32
	PID int

	// Err is the fatal protocol error posted to this client, if any.
	Err *ProtocolError

	Destroyed Signal[*Client]
	destroyed bool
}

// PostError records a protocol error and disconnects the client.
func (c *Client) PostError(code uint32, format string, args ...interface{}) {
	if c.Err != nil {
		return
	}
	c.Err = &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
	logger.Warnf("client %d (pid %d): %s", c.ID, c.PID, c.Err.Message)
	c.Destroy()
}

// PostNoMemory reports an allocation failure triggered by a client request.
func (c *Client) PostNoMemory() {
	c.PostError(ErrorNoMemory, "no memory")
}

// Destroy tears the client down once.
func (c *Client) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.Destroyed.Emit(c)
}

func (c *Client) Alive() bool {
	return !c.destroyed
}

// Surface is the client-side content a view displays.
type Surface struct {
	ID     uint32
	Client *Client
	Width  int32
	Height int32

	views []*View
}

// Views returns the views currently showing this surface.
func (s *Surface) Views() []*View {
	return s.views
}

// DefaultView returns the first view of the surface, or nil.
func (s *Surface) DefaultView() *View {
	if s == nil || len(s.views) == 0 {
		return nil
	}
	return s.views[0]
}
