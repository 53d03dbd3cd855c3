// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package packets contains the in-place IP header operations used to reflect
// packets.
package packets

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Family is the IP version of a packet.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "IPv4"
	case FamilyIPv6:
		return "IPv6"
	}
	return "unknown"
}

// ErrNotIP is returned when a buffer holds neither an IPv4 nor an IPv6 header.
var ErrNotIP = errors.New("error parsing IPv4 and IPv6 header")

const (
	ipv4SrcOffset = 12
	ipv4DstOffset = 16
	ipv6SrcOffset = 8
	ipv6DstOffset = 24
)

// SwapAddresses exchanges the source and destination address of the IP header
// at the start of pkt. Nothing else in pkt is modified. The one's-complement
// checksums stay valid, but outbound packets may carry offloaded partial
// checksums, so callers recompute them before injecting.
func SwapAddresses(pkt []byte) (Family, error) {
	err4 := checkIPv4(pkt)
	if err4 == nil {
		swap(pkt, ipv4SrcOffset, ipv4DstOffset, 4)
		return FamilyIPv4, nil
	}
	err6 := checkIPv6(pkt)
	if err6 == nil {
		swap(pkt, ipv6SrcOffset, ipv6DstOffset, 16)
		return FamilyIPv6, nil
	}
	return FamilyUnknown, fmt.Errorf("%w (%d bytes): ipv4: %v, ipv6: %v", ErrNotIP, len(pkt), err4, err6)
}

// DetectFamily reports which IP header pkt starts with without modifying it.
func DetectFamily(pkt []byte) Family {
	if checkIPv4(pkt) == nil {
		return FamilyIPv4
	}
	if checkIPv6(pkt) == nil {
		return FamilyIPv6
	}
	return FamilyUnknown
}

func checkIPv4(pkt []byte) error {
	if len(pkt) < ipv4.HeaderLen {
		return fmt.Errorf("packet shorter than %d bytes", ipv4.HeaderLen)
	}
	if v := pkt[0] >> 4; v != 4 {
		return fmt.Errorf("version %d", v)
	}
	var ip4 layers.IPv4
	if err := ip4.DecodeFromBytes(pkt, gopacket.NilDecodeFeedback); err != nil {
		return err
	}
	if int(ip4.Length) > len(pkt) {
		return fmt.Errorf("total length %d exceeds buffer of %d bytes", ip4.Length, len(pkt))
	}
	return nil
}

func checkIPv6(pkt []byte) error {
	if len(pkt) < ipv6.HeaderLen {
		return fmt.Errorf("packet shorter than %d bytes", ipv6.HeaderLen)
	}
	if v := pkt[0] >> 4; v != 6 {
		return fmt.Errorf("version %d", v)
	}
	var ip6 layers.IPv6
	if err := ip6.DecodeFromBytes(pkt, gopacket.NilDecodeFeedback); err != nil {
		return err
	}
	if ipv6.HeaderLen+int(ip6.Length) > len(pkt) {
		return fmt.Errorf("payload length %d exceeds buffer of %d bytes", ip6.Length, len(pkt))
	}
	return nil
}

func swap(pkt []byte, a, b, n int) {
	for i := 0; i < n; i++ {
		pkt[a+i], pkt[b+i] = pkt[b+i], pkt[a+i]
	}
}
