// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package windivert implements divert.Session on top of the WinDivert 2.x
// driver.
package windivert

import (
	"unsafe"

	"github.com/DataDog/datadog-retroflect/divert"
)

// bit layout of the flags word of WINDIVERT_ADDRESS
const (
	flagLayerMask   uint32 = 0x000000ff
	flagEventMask   uint32 = 0x0000ff00
	flagSniffed     uint32 = 1 << 16
	flagOutbound    uint32 = 1 << 17
	flagLoopback    uint32 = 1 << 18
	flagImpostor    uint32 = 1 << 19
	flagIPv6        uint32 = 1 << 20
	flagIPChecksum  uint32 = 1 << 21
	flagTCPChecksum uint32 = 1 << 22
	flagUDPChecksum uint32 = 1 << 23

	// bits carried through divert.Address.Engine untouched
	engineMask = flagLayerMask | flagEventMask | flagIPChecksum | flagTCPChecksum | flagUDPChecksum
)

// rawAddress mirrors WINDIVERT_ADDRESS with its network-layer union member.
type rawAddress struct {
	Timestamp int64
	Flags     uint32
	Reserved2 uint32
	IfIdx     uint32
	SubIfIdx  uint32
	Reserved3 [56]byte
}

const rawAddressSize = 80

var _ [rawAddressSize - unsafe.Sizeof(rawAddress{})]byte

func fromRaw(raw *rawAddress) divert.Address {
	addr := divert.Address{
		Timestamp: raw.Timestamp,
		Direction: divert.Inbound,
		Impostor:  raw.Flags&flagImpostor != 0,
		Loopback:  raw.Flags&flagLoopback != 0,
		IPv6:      raw.Flags&flagIPv6 != 0,
		Sniffed:   raw.Flags&flagSniffed != 0,
		IfIdx:     raw.IfIdx,
		SubIfIdx:  raw.SubIfIdx,
		Engine:    raw.Flags & engineMask,
	}
	if raw.Flags&flagOutbound != 0 {
		addr.Direction = divert.Outbound
	}
	return addr
}

func toRaw(addr divert.Address) rawAddress {
	raw := rawAddress{
		Timestamp: addr.Timestamp,
		Flags:     addr.Engine & engineMask,
		IfIdx:     addr.IfIdx,
		SubIfIdx:  addr.SubIfIdx,
	}
	set := func(on bool, bit uint32) {
		if on {
			raw.Flags |= bit
		}
	}
	set(addr.Direction == divert.Outbound, flagOutbound)
	set(addr.Impostor, flagImpostor)
	set(addr.Loopback, flagLoopback)
	set(addr.IPv6, flagIPv6)
	set(addr.Sniffed, flagSniffed)
	return raw
}
