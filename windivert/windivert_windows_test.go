// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build windows && (amd64 || arm64)

package windivert

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-retroflect/divert"
)

func TestEngineError(t *testing.T) {
	tests := []struct {
		name     string
		errno    syscall.Errno
		sentinel error
	}{
		{name: "host unreachable", errno: errHostUnreachable, sentinel: divert.ErrHostUnreachable},
		{name: "shutdown", errno: errNoData, sentinel: divert.ErrClosed},
		{name: "aborted", errno: errOperationAborted, sentinel: divert.ErrClosed},
		{name: "access denied", errno: errAccessDenied, sentinel: divert.ErrAccessDenied},
		{name: "other", errno: syscall.Errno(87)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engineError("sending packet", tt.errno)

			var engineErr *divert.EngineError
			require.True(t, errors.As(err, &engineErr))
			assert.Equal(t, uint32(tt.errno), engineErr.Code)
			assert.ErrorIs(t, err, tt.errno)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			} else {
				assert.False(t, errors.Is(err, divert.ErrHostUnreachable))
			}
		})
	}
}
