// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package config classifies reflect addresses and shield ports and loads the
// optional configuration file.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
)

const (
	// DefaultPriority is the engine handle priority used when none is given.
	DefaultPriority = 823
	// MinPriority and MaxPriority bound the engine handle priority.
	MinPriority = -30000
	MaxPriority = 30000
)

// ErrNoReflectAddress is returned when no reflect address was given.
// Shielding alone is not a supported mode.
var ErrNoReflectAddress = errors.New("no reflect address specified")

// ArgError is returned for an argument that is neither an IP address nor a
// port number.
type ArgError struct {
	Arg string
	Err error
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid IP address or port number: %q: %s", e.Arg, e.Err)
}

func (e *ArgError) Unwrap() error {
	return e.Err
}

// PriorityError reports a priority outside [MinPriority, MaxPriority].
type PriorityError struct {
	Priority int
}

func (e *PriorityError) Error() string {
	return fmt.Sprintf("priority %d out of range, must be between %d and %d inclusive", e.Priority, MinPriority, MaxPriority)
}

// ReflectAddressSet holds the addresses whose outbound traffic is reflected.
type ReflectAddressSet struct {
	IPv4 []netip.Addr
	IPv6 []netip.Addr
}

// Len returns the number of addresses in both families.
func (s ReflectAddressSet) Len() int {
	return len(s.IPv4) + len(s.IPv6)
}

// All returns the IPv4 addresses followed by the IPv6 addresses.
func (s ReflectAddressSet) All() []netip.Addr {
	all := make([]netip.Addr, 0, s.Len())
	all = append(all, s.IPv4...)
	return append(all, s.IPv6...)
}

// Contains reports whether addr is a reflect address.
func (s ReflectAddressSet) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, a := range s.All() {
		if a.Unmap() == addr {
			return true
		}
	}
	return false
}

// ShieldPortSet holds the ports whose inbound traffic is dropped.
type ShieldPortSet []uint16

// Contains reports whether port is shielded.
func (s ShieldPortSet) Contains(port uint16) bool {
	for _, p := range s {
		if p == port {
			return true
		}
	}
	return false
}

// Targets is the classified result of the positional arguments.
type Targets struct {
	Reflect ReflectAddressSet
	Shield  ShieldPortSet
}

// Validate checks that at least one reflect address is present.
func (t Targets) Validate() error {
	if t.Reflect.Len() == 0 {
		return ErrNoReflectAddress
	}
	return nil
}

// Add classifies one argument as an IPv4 address, an IPv6 address or a port
// number, in that order.
func (t *Targets) Add(arg string) error {
	if addr, err := ParseIPv4(arg); err == nil {
		t.Reflect.IPv4 = append(t.Reflect.IPv4, addr)
		return nil
	}
	if addr, err := ParseIPv6(arg); err == nil {
		t.Reflect.IPv6 = append(t.Reflect.IPv6, addr)
		return nil
	}
	port, err := ParsePort(arg)
	if err != nil {
		return &ArgError{Arg: arg, Err: err}
	}
	t.Shield = append(t.Shield, port)
	return nil
}

// ParseArgs classifies every argument. Order is kept within each family.
func ParseArgs(args []string) (Targets, error) {
	var t Targets
	for _, arg := range args {
		if err := t.Add(arg); err != nil {
			return Targets{}, err
		}
	}
	return t, nil
}

// ParseIPv4 parses a dotted-quad IPv4 address.
func ParseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %q", s)
	}
	return addr, nil
}

// ParseIPv6 parses an IPv6 address. Zoned addresses are rejected since the
// engine's filter grammar has no zone syntax.
func ParseIPv6(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is6() {
		return netip.Addr{}, fmt.Errorf("not an IPv6 address: %q", s)
	}
	if addr.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("zoned IPv6 address not supported: %q", s)
	}
	return addr, nil
}

// ParsePort parses a decimal port number in [0, 65535]. Trailing characters
// are an error.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("port number out of range")
		}
		return 0, fmt.Errorf("not a decimal port number")
	}
	return uint16(n), nil
}

// ValidatePriority checks p against the engine's priority range.
func ValidatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return &PriorityError{Priority: p}
	}
	return nil
}
