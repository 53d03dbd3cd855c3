// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package filter builds the capture engine's filter expression for a set of
// reflect addresses and shield ports.
package filter

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/DataDog/datadog-retroflect/config"
)

// ErrNoReflectAddress is returned by Build when the address set is empty.
var ErrNoReflectAddress = errors.New("filter needs at least one reflect address")

// Build returns
//
//	!loopback and (tcp or udp) and ((outbound and (...)) or (inbound and (...)))
//
// where the outbound clause matches every reflect address and the inbound
// clause, present only when ports are given, matches every shield port.
func Build(reflect config.ReflectAddressSet, shield config.ShieldPortSet) (string, error) {
	if reflect.Len() == 0 {
		return "", ErrNoReflectAddress
	}

	var sb strings.Builder
	sb.WriteString("!loopback and (tcp or udp) and ((outbound and (")
	for i, addr := range reflect.All() {
		if i > 0 {
			sb.WriteString(" or ")
		}
		sb.WriteString(addrMatch(addr))
	}
	sb.WriteString("))")

	if len(shield) > 0 {
		sb.WriteString(" or (inbound and (")
		for i, port := range shield {
			if i > 0 {
				sb.WriteString(" or ")
			}
			p := strconv.Itoa(int(port))
			sb.WriteString("tcp.DstPort == " + p + " or udp.DstPort == " + p)
		}
		sb.WriteString("))")
	}

	sb.WriteString(")")
	return sb.String(), nil
}

func addrMatch(addr netip.Addr) string {
	if addr.Is4() {
		return "ip.DstAddr == " + addr.String()
	}
	return "ipv6.DstAddr == " + addr.String()
}

var connectives = map[string]bool{"and": true, "or": true}

// Validate checks that expr has balanced parentheses and no connective
// without an operand on each side.
func Validate(expr string) error {
	depth := 0
	// expectOperand is true at the start, after "(", after a connective and after "!".
	expectOperand := true
	for _, tok := range tokenize(expr) {
		switch {
		case tok == "(":
			if !expectOperand {
				return fmt.Errorf("unexpected %q in %q", tok, expr)
			}
			depth++
		case tok == ")":
			if expectOperand {
				return fmt.Errorf("dangling connective before %q in %q", tok, expr)
			}
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced parentheses in %q", expr)
			}
		case tok == "!":
			if !expectOperand {
				return fmt.Errorf("unexpected %q in %q", tok, expr)
			}
		case connectives[tok]:
			if expectOperand {
				return fmt.Errorf("dangling connective %q in %q", tok, expr)
			}
			expectOperand = true
		default:
			if !expectOperand {
				return fmt.Errorf("missing connective before %q in %q", tok, expr)
			}
			expectOperand = false
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced parentheses in %q", expr)
	}
	if expectOperand {
		return fmt.Errorf("incomplete expression %q", expr)
	}
	return nil
}

// tokenize splits expr into parentheses, "!", connectives and comparisons.
// A comparison such as "ip.DstAddr == 1.2.3.4" becomes a single token.
func tokenize(expr string) []string {
	var (
		toks []string
		cur  []string
	)
	flush := func() {
		if len(cur) > 0 {
			toks = append(toks, strings.Join(cur, " "))
			cur = nil
		}
	}
	spaced := strings.NewReplacer("!=", " != ", "(", " ( ", ")", " ) ", "!", " ! ").Replace(expr)
	fields := strings.Fields(spaced)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case f == "(" || f == ")" || f == "!" || connectives[f]:
			flush()
			toks = append(toks, f)
		case f == "==" || f == "!=":
			// keep comparisons together with both operands
			cur = append(cur, f)
		default:
			if len(cur) > 0 && cur[len(cur)-1] != "==" && cur[len(cur)-1] != "!=" {
				flush()
			}
			cur = append(cur, f)
		}
	}
	flush()
	return toks
}
