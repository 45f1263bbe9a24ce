// Package ipc is the local control channel of a running compositor: protobuf
// Struct messages with a length prefix over a unix socket.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Commands understood by the control socket.
const (
	CommandOverview   = "overview"
	CommandZoomIn     = "zoom-in"
	CommandZoomOut    = "zoom-out"
	CommandRecord     = "record"
	CommandScreenshot = "screenshot"
	CommandStatus     = "status"
)

// maxMessageSize bounds a single framed message.
const maxMessageSize = 1 << 20

var ErrMessageTooLarge = errors.New("ipc: message too large")

// NewRequest builds a command message.
func NewRequest(command string, args map[string]interface{}) (*structpb.Struct, error) {
	fields := map[string]interface{}{"command": command}
	if len(args) > 0 {
		fields["args"] = args
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("invalid request arguments: %w", err)
	}
	return msg, nil
}

// ParseRequest extracts the command and its arguments.
func ParseRequest(msg *structpb.Struct) (string, map[string]interface{}, error) {
	v, ok := msg.GetFields()["command"]
	if !ok {
		return "", nil, fmt.Errorf("request has no command")
	}
	command, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || command.StringValue == "" {
		return "", nil, fmt.Errorf("request command is not a string")
	}
	var args map[string]interface{}
	if a := msg.GetFields()["args"].GetStructValue(); a != nil {
		args = a.AsMap()
	}
	return command.StringValue, args, nil
}

// NewResponse builds a successful reply carrying fields.
func NewResponse(fields map[string]interface{}) (*structpb.Struct, error) {
	out := map[string]interface{}{"ok": true}
	for k, v := range fields {
		out[k] = v
	}
	msg, err := structpb.NewStruct(out)
	if err != nil {
		return nil, fmt.Errorf("invalid response fields: %w", err)
	}
	return msg, nil
}

// NewErrorResponse builds a failed reply.
func NewErrorResponse(errMsg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ok":    structpb.NewBoolValue(false),
		"error": structpb.NewStringValue(errMsg),
	}}
}

// ParseResponse returns the reply fields, or the error the server sent.
func ParseResponse(msg *structpb.Struct) (map[string]interface{}, error) {
	fields := msg.AsMap()
	if ok, _ := fields["ok"].(bool); !ok {
		errMsg, _ := fields["error"].(string)
		if errMsg == "" {
			errMsg = "malformed response"
		}
		return nil, fmt.Errorf("server error: %s", errMsg)
	}
	delete(fields, "ok")
	return fields, nil
}

// readMessage reads one length-prefixed protobuf message
func readMessage(r io.Reader) (*structpb.Struct, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	if length > maxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read message data: %w", err)
	}

	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// writeMessage writes one length-prefixed protobuf message
func writeMessage(w io.Writer, msg *structpb.Struct) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(data) > maxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}
	return nil
}
