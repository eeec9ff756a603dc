package queuesync

import (
	"encoding/json"
	"strings"

	"github.com/johnpc/jpc-homie/internal/ports"
)

// CommandEnvelope is one request of the queue service's JSON command
// protocol, carried over both the HTTP and the websocket transport.
type CommandEnvelope struct {
	MessageID string         `json:"message_id"`
	Command   string         `json:"command"`
	Args      map[string]any `json:"args,omitempty"`
}

// CommandResult is the reply to a CommandEnvelope, correlated by MessageID.
type CommandResult struct {
	MessageID string          `json:"message_id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
}

// Err converts a populated error field into a CommandError.
func (r CommandResult) Err() error {
	if len(r.Error) == 0 || string(r.Error) == "null" {
		return nil
	}
	var structured struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Error, &structured); err == nil && structured.Message != "" {
		return &CommandError{Message: structured.Message}
	}
	return &CommandError{Message: strings.Trim(string(r.Error), `"`)}
}

// Codec builds and parses protocol payloads. It holds no connection state;
// the ID generator is its only dependency.
type Codec struct {
	IDs ports.IDGen
}

// Encode wraps a command and its args in an envelope with a fresh message id.
func (c Codec) Encode(command string, args map[string]any) CommandEnvelope {
	return CommandEnvelope{
		MessageID: c.IDs.NewID(),
		Command:   command,
		Args:      args,
	}
}

// DecodeEnvelope parses a raw request envelope, as seen by the receiving
// side of the protocol.
func (c Codec) DecodeEnvelope(raw []byte) (CommandEnvelope, error) {
	var env CommandEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return CommandEnvelope{}, &ProtocolError{Reason: "invalid json: " + err.Error(), Raw: raw}
	}
	if env.MessageID == "" {
		return CommandEnvelope{}, &ProtocolError{Reason: "missing message_id", Raw: raw}
	}
	return env, nil
}

// Decode parses a raw reply. A payload that is not a JSON object or that
// lacks a message id is a ProtocolError.
func (c Codec) Decode(raw []byte) (CommandResult, error) {
	var result CommandResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return CommandResult{}, &ProtocolError{Reason: "invalid json: " + err.Error(), Raw: raw}
	}
	if result.MessageID == "" {
		return CommandResult{}, &ProtocolError{Reason: "missing message_id", Raw: raw}
	}
	return result, nil
}
