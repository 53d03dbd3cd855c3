// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package reflector turns outbound packets to reflect addresses into inbound
// packets from those addresses, and drops inbound packets to shielded ports.
package reflector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/DataDog/datadog-retroflect/divert"
	"github.com/DataDog/datadog-retroflect/log"
	"github.com/DataDog/datadog-retroflect/packets"
)

// errSessionClosed ends a run without error.
var errSessionClosed = errors.New("session closed")

// Stats counts what a Reflector did with the packets it received.
type Stats struct {
	Received    uint64
	Reflected   uint64
	Shielded    uint64
	LoopDropped uint64
}

// Reflector runs the reflection loop over one session. It owns the session's
// packet buffer and must not be shared between goroutines.
type Reflector struct {
	id      string
	session divert.Session
	buf     []byte
	stats   Stats
}

// New returns a Reflector reading from and injecting into session.
func New(session divert.Session) *Reflector {
	return &Reflector{
		id:      uuid.New().String(),
		session: session,
		buf:     make([]byte, divert.MaxPacketSize),
	}
}

// ID identifies the reflector in logs.
func (r *Reflector) ID() string {
	return r.id
}

// Stats returns the counters. Only valid once Run has returned.
func (r *Reflector) Stats() Stats {
	return r.stats
}

// Run reflects packets until ctx is done, the session is closed, or a fatal
// error occurs. Cancelling ctx shuts the session down, which unblocks a
// pending receive.
func (r *Reflector) Run(ctx context.Context) error {
	shutdownDone := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(shutdownDone)
		if err := r.session.Shutdown(); err != nil {
			_ = log.Warnf("reflector %s: failed to shut down session: %s", r.id, err)
		}
	})
	// the caller closes the session once Run returns, so a shutdown already
	// in flight has to finish first
	defer func() {
		if !stop() {
			<-shutdownDone
		}
	}()
	defer func() {
		log.Debugf("reflector %s: received %d, reflected %d, shielded %d, loop-dropped %d",
			r.id, r.stats.Received, r.stats.Reflected, r.stats.Shielded, r.stats.LoopDropped)
	}()

	for {
		if err := r.reflectOne(); err != nil {
			if errors.Is(err, errSessionClosed) {
				log.Debugf("reflector %s: session closed", r.id)
				return nil
			}
			return err
		}
	}
}

func (r *Reflector) reflectOne() error {
	n, addr, err := r.session.Recv(r.buf)
	if err != nil {
		if errors.Is(err, divert.ErrClosed) {
			return errSessionClosed
		}
		return fmt.Errorf("failed to receive packet: %w", err)
	}
	r.stats.Received++

	if addr.Direction == divert.Inbound {
		// only inbound packets to shielded ports match the filter
		r.stats.Shielded++
		log.Debugf("reflector %s: dropping %d byte packet (%s)", r.id, n, addr)
		return nil
	}

	pkt := r.buf[:n]
	family, err := packets.SwapAddresses(pkt)
	if err != nil {
		return &ProtocolError{Len: n, Err: err}
	}

	reflected := addr.Reflected()
	if err := r.session.CalcChecksums(pkt, reflected); err != nil {
		return fmt.Errorf("failed to recompute checksums: %w", err)
	}

	dropped, err := absorbSendError(r.session.Send(pkt, reflected))
	if err != nil {
		return fmt.Errorf("failed to reflect packet: %w", err)
	}
	if dropped {
		r.stats.LoopDropped++
		log.Debugf("reflector %s: dropped %d byte %s packet whose hop limit expired", r.id, n, family)
		return nil
	}
	r.stats.Reflected++
	log.Debugf("reflector %s: reflected %d byte %s packet (%s)", r.id, n, family, reflected)
	return nil
}
