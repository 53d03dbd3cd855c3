// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build windows && (amd64 || arm64)

package windivert

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/DataDog/datadog-retroflect/divert"
	"github.com/DataDog/datadog-retroflect/log"
)

const (
	errAccessDenied     = syscall.Errno(5)
	errInvalidHandle    = syscall.Errno(6)
	errNoData           = syscall.Errno(232)
	errOperationAborted = syscall.Errno(995)
	errHostUnreachable  = syscall.Errno(1232)

	shutdownBoth = 3
)

var (
	// WinDivert.dll is expected next to the executable, together with the
	// WinDivert64.sys driver it installs on first open.
	dll = windows.NewLazyDLL("WinDivert.dll")

	procOpen          = dll.NewProc("WinDivertOpen")
	procRecv          = dll.NewProc("WinDivertRecv")
	procSend          = dll.NewProc("WinDivertSend")
	procShutdown      = dll.NewProc("WinDivertShutdown")
	procClose         = dll.NewProc("WinDivertClose")
	procCalcChecksums = dll.NewProc("WinDivertHelperCalcChecksums")

	loadOnce sync.Once
	loadErr  error
)

// Load makes sure WinDivert.dll and all the procedures used are available.
func Load() error {
	loadOnce.Do(func() {
		if err := dll.Load(); err != nil {
			loadErr = errors.Wrap(err, "failed to load WinDivert.dll")
			return
		}
		for _, p := range []*windows.LazyProc{procOpen, procRecv, procSend, procShutdown, procClose, procCalcChecksums} {
			if err := p.Find(); err != nil {
				loadErr = errors.Wrapf(err, "WinDivert.dll has no %s", p.Name)
				return
			}
		}
	})
	return loadErr
}

// Session is a WinDivert handle.
type Session struct {
	closeOnce sync.Once
	handle    windows.Handle
}

var _ divert.Session = &Session{}

// Open opens a WinDivert handle. It satisfies divert.Opener.
func Open(params divert.OpenParams) (divert.Session, error) {
	if err := Load(); err != nil {
		return nil, &divert.EngineError{Op: "opening WinDivert handle", Err: err}
	}
	filter, err := windows.BytePtrFromString(params.Filter)
	if err != nil {
		return nil, &divert.EngineError{Op: "opening WinDivert handle", Err: err}
	}

	r1, _, e1 := procOpen.Call(
		uintptr(unsafe.Pointer(filter)),
		uintptr(params.Layer),
		uintptr(params.Priority),
		uintptr(params.Flags),
	)
	if windows.Handle(r1) == windows.InvalidHandle {
		return nil, engineError("opening WinDivert handle", e1)
	}
	log.Debugf("opened WinDivert handle %#x (layer %d, priority %d)", r1, params.Layer, params.Priority)
	return &Session{handle: windows.Handle(r1)}, nil
}

// Recv blocks until a packet is diverted.
func (s *Session) Recv(buf []byte) (int, divert.Address, error) {
	if len(buf) == 0 {
		return 0, divert.Address{}, &divert.EngineError{Op: "receiving packet", Err: fmt.Errorf("empty buffer")}
	}
	var (
		raw rawAddress
		n   uint32
	)
	r1, _, e1 := procRecv.Call(
		uintptr(s.handle),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&n)),
		uintptr(unsafe.Pointer(&raw)),
	)
	if r1 == 0 {
		return 0, divert.Address{}, engineError("receiving packet", e1)
	}
	return int(n), fromRaw(&raw), nil
}

// Send injects pkt.
func (s *Session) Send(pkt []byte, addr divert.Address) error {
	if len(pkt) == 0 {
		return &divert.EngineError{Op: "sending packet", Err: fmt.Errorf("empty packet")}
	}
	raw := toRaw(addr)
	r1, _, e1 := procSend.Call(
		uintptr(s.handle),
		uintptr(unsafe.Pointer(&pkt[0])),
		uintptr(len(pkt)),
		0,
		uintptr(unsafe.Pointer(&raw)),
	)
	if r1 == 0 {
		return engineError("sending packet", e1)
	}
	return nil
}

// CalcChecksums runs WinDivertHelperCalcChecksums over pkt.
func (s *Session) CalcChecksums(pkt []byte, addr divert.Address) error {
	if len(pkt) == 0 {
		return &divert.EngineError{Op: "calculating checksums", Err: fmt.Errorf("empty packet")}
	}
	raw := toRaw(addr)
	r1, _, e1 := procCalcChecksums.Call(
		uintptr(unsafe.Pointer(&pkt[0])),
		uintptr(len(pkt)),
		uintptr(unsafe.Pointer(&raw)),
		0,
	)
	if r1 == 0 {
		return engineError("calculating checksums", e1)
	}
	return nil
}

// Shutdown stops the handle from receiving and sending. A blocked Recv
// returns divert.ErrClosed.
func (s *Session) Shutdown() error {
	r1, _, e1 := procShutdown.Call(uintptr(s.handle), shutdownBoth)
	if r1 == 0 {
		return engineError("shutting down WinDivert handle", e1)
	}
	return nil
}

// Close closes the handle.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		r1, _, e1 := procClose.Call(uintptr(s.handle))
		if r1 == 0 {
			err = engineError("closing WinDivert handle", e1)
		}
	})
	return err
}

func engineError(op string, e error) error {
	errno, ok := e.(syscall.Errno)
	if !ok {
		return &divert.EngineError{Op: op, Err: errors.Wrap(e, op)}
	}
	var cause error
	switch errno {
	case errHostUnreachable:
		// An impostor packet whose TTL or hop limit reached zero.
		cause = divert.ErrHostUnreachable
	case errNoData, errOperationAborted, errInvalidHandle:
		cause = divert.ErrClosed
	case errAccessDenied:
		cause = divert.ErrAccessDenied
	default:
		return &divert.EngineError{Op: op, Code: uint32(errno), Err: errno}
	}
	return &divert.EngineError{Op: op, Code: uint32(errno), Err: fmt.Errorf("%w: %w", cause, errno)}
}
