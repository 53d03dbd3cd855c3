// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package divert

import (
	"errors"
	"fmt"
)

var (
	// ErrHostUnreachable is the engine refusing to inject an impostor packet
	// whose TTL or hop limit reached zero.
	ErrHostUnreachable = errors.New("host unreachable")
	// ErrClosed is returned by Recv after the session was shut down or its
	// packet source is exhausted.
	ErrClosed = errors.New("session closed")
	// ErrAccessDenied means the engine requires more privileges.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnsupported means no engine is available on this platform.
	ErrUnsupported = errors.New("packet diversion is not supported on this platform")
)

// EngineError is a failure reported by the engine, carrying the platform
// error code.
type EngineError struct {
	Op   string
	Code uint32
	Err  error
}

func (e *EngineError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("error %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("error %s, error code: %d: %s", e.Op, e.Code, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
