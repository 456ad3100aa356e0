// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame is the self-describing envelope exchanged on every channel.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrInvalidFrame is returned by Decode for malformed framing.
type ErrInvalidFrame struct {
	cause error
}

func (e *ErrInvalidFrame) Error() string { return fmt.Sprintf("invalid frame: %v", e.cause) }
func (e *ErrInvalidFrame) Unwrap() error { return e.cause }

// Decode parses a raw text frame. Both wire shapes are accepted: the canonical
// `{type, data}` envelope and the legacy shape where the payload fields are merged
// into the top level next to `type`.
func Decode(raw []byte) (*Frame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ErrInvalidFrame{cause: err}
	}

	typeRaw, ok := fields["type"]
	if !ok {
		return nil, &ErrInvalidFrame{cause: fmt.Errorf("missing type field")}
	}
	var frameType string
	if err := json.Unmarshal(typeRaw, &frameType); err != nil {
		return nil, &ErrInvalidFrame{cause: fmt.Errorf("non-string type field")}
	}
	if frameType == "" {
		return nil, &ErrInvalidFrame{cause: fmt.Errorf("empty type field")}
	}

	if data, ok := fields["data"]; ok {
		return &Frame{Type: frameType, Data: data}, nil
	}

	// Legacy merged shape: everything but the type token is the payload.
	delete(fields, "type")
	if len(fields) == 0 {
		return &Frame{Type: frameType}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, &ErrInvalidFrame{cause: err}
	}
	return &Frame{Type: frameType, Data: data}, nil
}

// New builds a frame with the given payload. It panics only on payloads that
// cannot be marshalled, which is a programming error.
func New(frameType string, payload any) *Frame {
	if payload == nil {
		return &Frame{Type: frameType}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("protocol: cannot marshal payload for %s: %v", frameType, err))
	}
	return &Frame{Type: frameType, Data: data}
}

// Into unmarshals the frame payload into the given value. A frame without
// payload leaves the value untouched.
func (f *Frame) Into(v any) error {
	if len(f.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("cannot unmarshal %s payload: %w", f.Type, err)
	}
	return nil
}

// Marshal serializes the frame for the wire.
func (f *Frame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// Failure is the payload of every *_FAIL frame.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSuccess builds the `<op>_SUCCESS` frame for a request type.
func NewSuccess(requestType string, payload any) *Frame {
	return New(Success(requestType), payload)
}

// NewFailure builds the `<op>_FAIL` frame for a request type.
func NewFailure(requestType, code, message string) *Frame {
	return New(Fail(requestType), Failure{Code: code, Message: message})
}
