// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalArgument matches failures where an argument had the wrong
	// shape or type.
	ErrIllegalArgument = errors.New("illegal argument")
	// ErrIllegalOperation matches failures where well-formed arguments did
	// not apply to the current graph state.
	ErrIllegalOperation = errors.New("illegal operation")
	// ErrInternal matches assertion failures inside the engine.
	ErrInternal = errors.New("engine internal error")
	// ErrRemote matches every failure reported by the engine, whatever its
	// kind.
	ErrRemote = errors.New("remote error")
	// ErrTransport matches every channel failure.
	ErrTransport = errors.New("transport failure")
)

// Kind is the category of a remote failure.
type Kind uint8

const (
	// KindGeneric is any failure the engine reports under an unrecognized
	// type.
	KindGeneric Kind = iota
	KindIllegalArgument
	KindIllegalOperation
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindIllegalArgument:
		return "IllegalArgument"
	case KindIllegalOperation:
		return "IllegalOperation"
	case KindInternal:
		return "InternalError"
	default:
		return "GenericRemoteError"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindIllegalArgument:
		return ErrIllegalArgument
	case KindIllegalOperation:
		return ErrIllegalOperation
	case KindInternal:
		return ErrInternal
	default:
		return nil
	}
}

// Error type names the engine reports.
const (
	TypeIllegalArgument  = "CoreIllegalArgumentError"
	TypeIllegalOperation = "CoreIllegalOperationError"
	TypeInternal         = "CoreInternalError"
	TypeGeneric          = "Error"
)

var kindsByType = map[string]Kind{
	TypeIllegalArgument:  KindIllegalArgument,
	TypeIllegalOperation: KindIllegalOperation,
	TypeInternal:         KindInternal,
	TypeGeneric:          KindGeneric,
}

// ClassifyKind maps an engine error type to its category. Unknown types
// are KindGeneric.
func ClassifyKind(typ string) Kind {
	return kindsByType[typ]
}

// RemoteError is a failure the engine reported while executing a command.
type RemoteError struct {
	Kind Kind
	// Type is the error type exactly as the engine reported it.
	Type    string
	Message string
	Stack   string
	// Command is the command that failed.
	Command Command
	// Request is the request as echoed back by the engine.
	Request Value
}

// Classify turns an error descriptor into a typed failure. It never fails.
func Classify(desc ErrorDescriptor, cmd Command) *RemoteError {
	req := desc.Request
	if req == nil {
		req = Null{}
	}
	return &RemoteError{
		Kind:    ClassifyKind(desc.Kind),
		Type:    desc.Kind,
		Message: desc.Message,
		Stack:   desc.Stack,
		Command: cmd,
		Request: req,
	}
}

func (e *RemoteError) Error() string {
	if e.Type == "" || e.Type == e.Kind.String() {
		return fmt.Sprintf("%s: %s: %s", e.Command, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s): %s", e.Command, e.Kind, e.Type, e.Message)
}

// Is matches ErrRemote and the sentinel of the error's kind.
func (e *RemoteError) Is(target error) bool {
	if target == ErrRemote {
		return true
	}
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// IsKind reports whether err is a remote failure of kind k.
func IsKind(err error, k Kind) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == k
}

// TransportError is a failure of the channel itself. The session that
// produced it is no longer usable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
