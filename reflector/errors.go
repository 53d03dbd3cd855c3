// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package reflector

import (
	"errors"
	"fmt"

	"github.com/DataDog/datadog-retroflect/config"
	"github.com/DataDog/datadog-retroflect/divert"
	"github.com/DataDog/datadog-retroflect/filter"
)

// ErrorCode classifies why reflection stopped.
type ErrorCode string

const (
	// ErrCodeConfig indicates bad arguments or configuration.
	ErrCodeConfig ErrorCode = "CONFIG"
	// ErrCodeDenied indicates the engine needs more privileges.
	ErrCodeDenied ErrorCode = "DENIED"
	// ErrCodeUnsupported indicates no engine exists on this platform.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
	// ErrCodeEngine indicates the capture/injection engine failed.
	ErrCodeEngine ErrorCode = "ENGINE"
	// ErrCodeProtocol indicates a diverted packet was not a valid IP packet.
	ErrCodeProtocol ErrorCode = "PROTOCOL"
	// ErrCodeUnknown is the catch-all for unclassified errors.
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// ReflectError is a classified error.
type ReflectError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ReflectError) Error() string {
	return e.Message
}

func (e *ReflectError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a packet that matched the filter but could not be
// parsed as IPv4 or IPv6. The filter and the parser disagree about what an IP
// packet is, so reflection cannot continue safely.
type ProtocolError struct {
	Len int
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("diverted packet of %d bytes is not an IP packet: %s", e.Len, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ClassifyError inspects an error chain and returns a ReflectError with the
// appropriate code.
func ClassifyError(err error) *ReflectError {
	if err == nil {
		return nil
	}

	var argErr *config.ArgError
	var prioErr *config.PriorityError
	if errors.As(err, &argErr) || errors.As(err, &prioErr) ||
		errors.Is(err, config.ErrNoReflectAddress) || errors.Is(err, filter.ErrNoReflectAddress) {
		return &ReflectError{Code: ErrCodeConfig, Message: err.Error(), Err: err}
	}

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return &ReflectError{Code: ErrCodeProtocol, Message: err.Error(), Err: err}
	}

	if errors.Is(err, divert.ErrAccessDenied) {
		return &ReflectError{Code: ErrCodeDenied, Message: err.Error(), Err: err}
	}
	if errors.Is(err, divert.ErrUnsupported) {
		return &ReflectError{Code: ErrCodeUnsupported, Message: err.Error(), Err: err}
	}

	var engineErr *divert.EngineError
	if errors.As(err, &engineErr) {
		return &ReflectError{Code: ErrCodeEngine, Message: err.Error(), Err: err}
	}

	return &ReflectError{Code: ErrCodeUnknown, Message: err.Error(), Err: err}
}
