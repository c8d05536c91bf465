// Package envelope defines the JSON message shapes exchanged between the
// host and UI panel processes.
package envelope

import (
	"encoding/json"

	"github.com/morezero/console-bridge/pkg/fault"
)

// Request is the JSON envelope for a UI-originated request. RequestID is
// unique for the lifetime of the issuing panel session and correlates the
// eventual response. Immutable once sent.
type Request struct {
	Command   string          `json:"command"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Response is the JSON envelope for a host-originated message. A response
// without a RequestID is a broadcast/state-push delivered to all listeners
// rather than resolved against a pending request.
type Response struct {
	Command   string          `json:"command"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail holds structured error information carried on the wire.
type ErrorDetail struct {
	Kind    fault.Kind `json:"kind"`
	Message string     `json:"message"`
}

// Fault converts the wire error back into a fault.Fault.
func (e *ErrorDetail) Fault() *fault.Fault {
	return fault.New(e.Kind, e.Message)
}

// Ok builds a success response correlated to requestID.
func Ok(command, requestID string, payload interface{}) (*Response, error) {
	data, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	return &Response{Command: command, RequestID: requestID, Payload: data}, nil
}

// Err builds a failure response correlated to requestID.
func Err(command, requestID string, kind fault.Kind, message string) *Response {
	return &Response{
		Command:   command,
		RequestID: requestID,
		Error:     &ErrorDetail{Kind: kind, Message: message},
	}
}

// Broadcast builds an uncorrelated state-push message.
func Broadcast(command string, payload interface{}) (*Response, error) {
	data, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	return &Response{Command: command, Payload: data}, nil
}

// EncodePayload serializes a value to JSON bytes. A nil value encodes to nil.
func EncodePayload(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target. A missing
// payload leaves the target at its zero value.
func DecodePayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
