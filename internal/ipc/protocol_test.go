package ipc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestRequestRoundTrip(t *testing.T) {
	req, err := NewRequest(CommandRecord, map[string]interface{}{"output": "HDMI-A-1"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeMessage(&buf, req))

	got, err := readMessage(&buf)
	require.NoError(t, err)

	command, args, err := ParseRequest(got)
	require.NoError(t, err)
	assert.Equal(t, CommandRecord, command)
	assert.Equal(t, "HDMI-A-1", args["output"])
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  *structpb.Struct
	}{
		{"empty", &structpb.Struct{}},
		{"number command", &structpb.Struct{Fields: map[string]*structpb.Value{
			"command": structpb.NewNumberValue(3),
		}}},
		{"blank command", &structpb.Struct{Fields: map[string]*structpb.Value{
			"command": structpb.NewStringValue(""),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseRequest(tt.msg)
			assert.Error(t, err)
		})
	}

	_, args, err := ParseRequest(&structpb.Struct{Fields: map[string]*structpb.Value{
		"command": structpb.NewStringValue(CommandStatus),
	}})
	require.NoError(t, err)
	assert.Nil(t, args)
}

func TestResponses(t *testing.T) {
	resp, err := NewResponse(map[string]interface{}{"views": 3})
	require.NoError(t, err)
	fields, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"views": float64(3)}, fields)

	_, err = ParseResponse(NewErrorResponse("no outputs"))
	assert.EqualError(t, err, "server error: no outputs")

	_, err = ParseResponse(&structpb.Struct{})
	assert.EqualError(t, err, "server error: malformed response")

	_, err = NewResponse(map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestReadMessageLimits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(maxMessageSize+1)))
	_, err := readMessage(&buf)
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(10)))
	buf.WriteString("short")
	_, err = readMessage(&buf)
	assert.Error(t, err)
}
