// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/checksum"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

// RecomputeChecksums rewrites, in place, the IPv4 header checksum and the
// TCP or UDP checksum of pkt. Fragments and other transports only get their
// IPv4 header checksum fixed.
func RecomputeChecksums(pkt []byte) error {
	var first gopacket.LayerType
	switch DetectFamily(pkt) {
	case FamilyIPv4:
		first = layers.LayerTypeIPv4
	case FamilyIPv6:
		first = layers.LayerTypeIPv6
	default:
		return ErrNotIP
	}

	decoded := gopacket.NewPacket(pkt, first, gopacket.DecodeOptions{NoCopy: true})

	var (
		src, dst tcpip.Address
		end      int
	)
	if first == layers.LayerTypeIPv4 {
		ip := header.IPv4(pkt)
		ip.SetChecksum(0)
		ip.SetChecksum(^ip.CalculateChecksum())
		src, dst = ip.SourceAddress(), ip.DestinationAddress()
		end = int(ip.TotalLength())
	} else {
		ip := header.IPv6(pkt)
		src, dst = ip.SourceAddress(), ip.DestinationAddress()
		end = header.IPv6MinimumSize + int(ip.PayloadLength())
	}
	if end > len(pkt) || end == 0 {
		end = len(pkt)
	}

	offset, transport := transportOffset(decoded)
	if transport == nil {
		return nil
	}
	if offset > end {
		return fmt.Errorf("transport header at %d beyond end of packet %d", offset, end)
	}
	segment := pkt[offset:end]

	switch transport.LayerType() {
	case layers.LayerTypeTCP:
		if len(segment) < header.TCPMinimumSize {
			return fmt.Errorf("truncated TCP header: %d bytes", len(segment))
		}
		tcp := header.TCP(segment)
		tcp.SetChecksum(0)
		xsum := header.PseudoHeaderChecksum(header.TCPProtocolNumber, src, dst, uint16(len(segment)))
		tcp.SetChecksum(^checksum.Checksum(segment, xsum))
	case layers.LayerTypeUDP:
		if len(segment) < header.UDPMinimumSize {
			return fmt.Errorf("truncated UDP header: %d bytes", len(segment))
		}
		udp := header.UDP(segment)
		udp.SetChecksum(0)
		xsum := header.PseudoHeaderChecksum(header.UDPProtocolNumber, src, dst, uint16(len(segment)))
		sum := ^checksum.Checksum(segment, xsum)
		if sum == 0 {
			// zero means "no checksum" in UDP
			sum = 0xffff
		}
		udp.SetChecksum(sum)
	}
	return nil
}

// transportOffset returns the byte offset of the TCP or UDP layer in the
// decoded packet, or a nil layer if there is none.
func transportOffset(p gopacket.Packet) (int, gopacket.Layer) {
	offset := 0
	for _, l := range p.Layers() {
		switch l.LayerType() {
		case layers.LayerTypeTCP, layers.LayerTypeUDP:
			return offset, l
		case gopacket.LayerTypeFragment, gopacket.LayerTypeDecodeFailure, gopacket.LayerTypePayload:
			return 0, nil
		}
		offset += len(l.LayerContents())
	}
	return 0, nil
}
