// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package divert defines the interface to a packet capture/injection engine:
// a privileged facility that hands packets matching a filter expression to
// user space and lets user space inject packets back into the network stack.
package divert

//go:generate mockgen -source=divert.go -destination=mock_session.go -package=divert

// MaxPacketSize is the largest possible IP packet.
const MaxPacketSize = 0xFFFF

// Layer selects where in the network stack the engine intercepts packets.
type Layer uint32

const (
	LayerNetwork Layer = iota
	LayerNetworkForward
)

// OpenParams are the arguments used to open a Session.
type OpenParams struct {
	Filter   string
	Layer    Layer
	Priority int16
	Flags    uint64
}

// Session is an open handle to the engine. A Session is owned by a single
// goroutine, except for Shutdown which may be called from any goroutine.
type Session interface {
	// Recv blocks until a packet matching the filter arrives, copies it into
	// buf and returns its length and metadata. It returns ErrClosed once the
	// session has been shut down.
	Recv(buf []byte) (int, Address, error)
	// Send injects pkt using addr.
	Send(pkt []byte, addr Address) error
	// CalcChecksums recomputes the IP and transport checksums of pkt.
	CalcChecksums(pkt []byte, addr Address) error
	// Shutdown makes pending and future Recv calls return ErrClosed.
	Shutdown() error
	// Close releases the handle.
	Close() error
}

// Opener opens a Session.
type Opener func(params OpenParams) (Session, error)
