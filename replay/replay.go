// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package replay implements divert.Session over a packet capture file, so
// reflection can be exercised without a capture driver or privileges.
//
// Packets are read from a pcap or pcapng capture and classified the way the
// engine's filter would: TCP and UDP packets to a reflect address are
// outbound, TCP and UDP packets to a shield port are inbound, loopback and
// everything else is skipped. Injected packets are written to a pcap file.
// Like the engine, injecting an impostor packet lowers its TTL or hop limit and
// fails with divert.ErrHostUnreachable once it reaches zero.
package replay

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	pkgerrors "github.com/pkg/errors"

	"github.com/DataDog/datadog-retroflect/config"
	"github.com/DataDog/datadog-retroflect/divert"
	"github.com/DataDog/datadog-retroflect/log"
	"github.com/DataDog/datadog-retroflect/packets"
)

// hostUnreachableCode is the Windows error code the engine reports when it
// refuses an expired impostor packet.
const hostUnreachableCode = 1232

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Session replays a capture.
type Session struct {
	closeOnce sync.Once
	closed    atomic.Bool

	reader  packetReader
	writer  *pcapgo.Writer
	flush   func() error
	closers []io.Closer

	targets config.Targets
	written atomic.Uint64
}

var _ divert.Session = &Session{}

// New returns a Session reading a capture from r and writing injected packets
// to w. w may be nil to discard injected packets.
func New(r io.Reader, w io.Writer, targets config.Targets) (*Session, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read capture header")
	}

	s := &Session{targets: targets}
	if bytes.Equal(magic, pcapngMagic) {
		s.reader, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		s.reader, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open capture")
	}

	if w != nil {
		bw := bufio.NewWriter(w)
		s.writer = pcapgo.NewWriter(bw)
		if err := s.writer.WriteFileHeader(divert.MaxPacketSize, layers.LinkTypeRaw); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to write capture header")
		}
		s.flush = bw.Flush
	}
	return s, nil
}

// OpenFiles opens the capture at inPath and, if outPath is not empty, creates
// the output capture. Both files are closed by Close.
func OpenFiles(inPath, outPath string, targets config.Targets) (*Session, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return nil, err
	}
	var out *os.File
	if outPath != "" {
		out, err = os.Create(outPath)
		if err != nil {
			_ = in.Close()
			return nil, err
		}
	}

	var w io.Writer
	if out != nil {
		w = out
	}
	s, err := New(in, w, targets)
	if err != nil {
		_ = in.Close()
		if out != nil {
			_ = out.Close()
		}
		return nil, err
	}
	s.closers = append(s.closers, in)
	if out != nil {
		s.closers = append(s.closers, out)
	}
	return s, nil
}

// Opener returns a divert.Opener that replays inPath. The filter expression
// is not interpreted; targets drive the classification instead.
func Opener(inPath, outPath string, targets config.Targets) divert.Opener {
	return func(params divert.OpenParams) (divert.Session, error) {
		log.Debugf("replaying %s for filter %q", inPath, params.Filter)
		s, err := OpenFiles(inPath, outPath, targets)
		if err != nil {
			return nil, &divert.EngineError{Op: "opening capture", Err: err}
		}
		return s, nil
	}
}

// Written returns the number of packets injected so far.
func (s *Session) Written() uint64 {
	return s.written.Load()
}

// Recv returns the next packet of the capture that the filter would match.
func (s *Session) Recv(buf []byte) (int, divert.Address, error) {
	for {
		if s.closed.Load() {
			return 0, divert.Address{}, &divert.EngineError{Op: "receiving packet", Err: divert.ErrClosed}
		}

		data, ci, err := s.reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return 0, divert.Address{}, &divert.EngineError{Op: "receiving packet", Err: divert.ErrClosed}
		}
		if err != nil {
			return 0, divert.Address{}, &divert.EngineError{Op: "receiving packet", Err: pkgerrors.Wrap(err, "failed to read capture")}
		}

		pkt, err := packets.StripLinkHeader(data, s.reader.LinkType())
		if err != nil {
			return 0, divert.Address{}, &divert.EngineError{Op: "receiving packet", Err: err}
		}
		if pkt == nil {
			continue
		}

		dir, family, ok := s.classify(pkt)
		if !ok {
			log.Tracef("replay: skipping %d byte packet not matched by the filter", len(pkt))
			continue
		}
		if len(pkt) > len(buf) {
			return 0, divert.Address{}, &divert.EngineError{
				Op:  "receiving packet",
				Err: fmt.Errorf("packet of %d bytes does not fit in %d byte buffer", len(pkt), len(buf)),
			}
		}

		n := copy(buf, pkt)
		return n, divert.Address{
			Timestamp: ci.Timestamp.UnixNano(),
			Direction: dir,
			IPv6:      family == packets.FamilyIPv6,
		}, nil
	}
}

func (s *Session) classify(pkt []byte) (divert.Direction, packets.Family, bool) {
	family := packets.DetectFamily(pkt)
	var first gopacket.LayerType
	switch family {
	case packets.FamilyIPv4:
		first = layers.LayerTypeIPv4
	case packets.FamilyIPv6:
		first = layers.LayerTypeIPv6
	default:
		return 0, family, false
	}

	p := gopacket.NewPacket(pkt, first, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	network := p.NetworkLayer()
	if network == nil {
		return 0, family, false
	}
	src, _ := netip.AddrFromSlice(network.NetworkFlow().Src().Raw())
	dst, _ := netip.AddrFromSlice(network.NetworkFlow().Dst().Raw())
	if src.IsLoopback() || dst.IsLoopback() {
		return 0, family, false
	}

	var dstPort uint16
	switch t := p.TransportLayer().(type) {
	case *layers.TCP:
		dstPort = uint16(t.DstPort)
	case *layers.UDP:
		dstPort = uint16(t.DstPort)
	default:
		return 0, family, false
	}

	if s.targets.Reflect.Contains(dst) {
		return divert.Outbound, family, true
	}
	if s.targets.Shield.Contains(dstPort) {
		return divert.Inbound, family, true
	}
	return 0, family, false
}

// Send writes pkt to the output capture.
func (s *Session) Send(pkt []byte, addr divert.Address) error {
	if addr.Impostor {
		hops, err := packets.DecrementHopLimit(pkt)
		if err != nil {
			return &divert.EngineError{Op: "sending packet", Err: err}
		}
		if hops == 0 {
			return &divert.EngineError{Op: "sending packet", Code: hostUnreachableCode, Err: divert.ErrHostUnreachable}
		}
	}

	if s.writer != nil {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(0, addr.Timestamp),
			CaptureLength: len(pkt),
			Length:        len(pkt),
		}
		if err := s.writer.WritePacket(ci, pkt); err != nil {
			return &divert.EngineError{Op: "sending packet", Err: pkgerrors.Wrap(err, "failed to write capture")}
		}
	}
	s.written.Add(1)
	return nil
}

// CalcChecksums recomputes the checksums of pkt.
func (s *Session) CalcChecksums(pkt []byte, _ divert.Address) error {
	if err := packets.RecomputeChecksums(pkt); err != nil {
		return &divert.EngineError{Op: "calculating checksums", Err: err}
	}
	return nil
}

// Shutdown makes the next Recv return divert.ErrClosed.
func (s *Session) Shutdown() error {
	s.closed.Store(true)
	return nil
}

// Close flushes the output capture and closes the files opened by OpenFiles.
func (s *Session) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.flush != nil {
			if err := s.flush(); err != nil {
				errs = append(errs, fmt.Errorf("failed to flush capture: %w", err))
			}
		}
		for _, c := range s.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	if len(errs) > 0 {
		return &divert.EngineError{Op: "closing capture", Err: errors.Join(errs...)}
	}
	return nil
}
