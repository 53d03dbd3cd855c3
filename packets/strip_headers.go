// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// StripLinkHeader returns the IP packet carried in a frame of the given link
// type. A nil slice with a nil error means the frame carries no IP packet.
func StripLinkHeader(buf []byte, linkType layers.LinkType) ([]byte, error) {
	switch linkType {
	case layers.LinkTypeEthernet:
		return stripEthernetHeader(buf)
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		return buf, nil
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		if len(buf) < 4 {
			return nil, fmt.Errorf("StripLinkHeader: loopback frame of %d bytes", len(buf))
		}
		return buf[4:], nil
	}
	return nil, fmt.Errorf("StripLinkHeader: unsupported link type %s", linkType)
}

// removes the preceding ethernet header from the buffer
func stripEthernetHeader(buf []byte) ([]byte, error) {
	var eth layers.Ethernet
	err := (&eth).DecodeFromBytes(buf, gopacket.NilDecodeFeedback)
	if err != nil {
		return nil, fmt.Errorf("stripEthernetHeader failed to decode ethernet: %w", err)
	}
	// return zero bytes when the it's not an IP packet
	if eth.EthernetType != layers.EthernetTypeIPv4 && eth.EthernetType != layers.EthernetTypeIPv6 {
		return nil, nil
	}
	return eth.Payload, nil
}
