// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

// HopLimit returns the IPv4 TTL or IPv6 hop limit of pkt.
func HopLimit(pkt []byte) (uint8, error) {
	switch DetectFamily(pkt) {
	case FamilyIPv4:
		return header.IPv4(pkt).TTL(), nil
	case FamilyIPv6:
		return header.IPv6(pkt).HopLimit(), nil
	}
	return 0, ErrNotIP
}

// DecrementHopLimit lowers the TTL or hop limit of pkt by one, saturating at
// zero, and returns the new value. The IPv4 header checksum is updated.
func DecrementHopLimit(pkt []byte) (uint8, error) {
	switch DetectFamily(pkt) {
	case FamilyIPv4:
		ip := header.IPv4(pkt)
		ttl := ip.TTL()
		if ttl > 0 {
			ttl--
		}
		ip.SetTTL(ttl)
		ip.SetChecksum(0)
		ip.SetChecksum(^ip.CalculateChecksum())
		return ttl, nil
	case FamilyIPv6:
		ip := header.IPv6(pkt)
		hops := ip.HopLimit()
		if hops > 0 {
			hops--
		}
		ip.SetHopLimit(hops)
		return hops, nil
	}
	return 0, ErrNotIP
}
