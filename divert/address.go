// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package divert

import "fmt"

// Direction is the direction of a packet relative to the local host.
type Direction uint8

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Address is the out-of-band metadata the engine attaches to a packet.
type Address struct {
	Timestamp int64
	Direction Direction
	// Impostor marks a packet injected by a user-space program rather than
	// observed from the network stack.
	Impostor bool
	Loopback bool
	IPv6     bool
	Sniffed  bool
	// IfIdx and SubIfIdx identify the interface the packet was seen on.
	IfIdx    uint32
	SubIfIdx uint32
	// Engine holds engine-specific bits that must be handed back unchanged.
	Engine uint32
}

// Reflected returns a copy of a marked as an inbound impostor.
func (a Address) Reflected() Address {
	a.Direction = Inbound
	a.Impostor = true
	return a
}

func (a Address) String() string {
	s := a.Direction.String()
	if a.Impostor {
		s += ",impostor"
	}
	if a.Loopback {
		s += ",loopback"
	}
	if a.IPv6 {
		s += ",ipv6"
	}
	return fmt.Sprintf("%s if=%d.%d", s, a.IfIdx, a.SubIfIdx)
}
