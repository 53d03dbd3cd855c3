// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package cmd

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-retroflect/config"
	"github.com/DataDog/datadog-retroflect/divert"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := NewRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// writeCapture writes a raw IP capture holding one TCP packet to dst.
func writeCapture(t *testing.T, dst string) string {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP("192.168.1.10").To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	tcp := &layers.TCP{SrcPort: 50000, DstPort: 443, SYN: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, ip, tcp))

	var capture bytes.Buffer
	w := pcapgo.NewWriter(&capture)
	require.NoError(t, w.WriteFileHeader(divert.MaxPacketSize, layers.LinkTypeRaw))
	pkt := buf.Bytes()
	require.NoError(t, w.WritePacket(gopacket.CaptureInfo{Timestamp: time.Unix(1700000000, 0), CaptureLength: len(pkt), Length: len(pkt)}, pkt))

	path := filepath.Join(t.TempDir(), "in.pcap")
	require.NoError(t, os.WriteFile(path, capture.Bytes(), 0o600))
	return path
}

func countPackets(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	n := 0
	for {
		if _, _, err := r.ReadPacketData(); err != nil {
			return n
		}
		n++
	}
}

func TestNoArgumentsPrintsUsage(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "retroflect [reflect_address_or_shield_port]...")
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "invalid argument",
			args:     []string{"10.0.0.5", "80abc"},
			contains: `invalid IP address or port number: "80abc"`,
			check: func(t *testing.T, err error) {
				var argErr *config.ArgError
				assert.True(t, errors.As(err, &argErr))
			},
		},
		{
			name:     "port out of range",
			args:     []string{"10.0.0.5", "65536"},
			contains: `"65536"`,
		},
		{
			name:     "negative number",
			args:     []string{"10.0.0.5", "-1"},
			contains: `invalid IP address or port number: "-1"`,
			check: func(t *testing.T, err error) {
				var argErr *config.ArgError
				assert.True(t, errors.As(err, &argErr))
			},
		},
		{
			name:     "negative port",
			args:     []string{"-80", "10.0.0.5"},
			contains: `invalid IP address or port number: "-80"`,
		},
		{
			name:     "unknown flag",
			args:     []string{"-x", "10.0.0.5"},
			contains: "unknown shorthand flag",
		},
		{
			name:     "ports only",
			args:     []string{"80", "443"},
			contains: "no reflect address specified",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, config.ErrNoReflectAddress)
			},
		},
		{
			name:     "priority out of range",
			args:     []string{"--priority", "40000", "10.0.0.5"},
			contains: "40000",
			check: func(t *testing.T, err error) {
				var prioErr *config.PriorityError
				assert.True(t, errors.As(err, &prioErr))
			},
		},
		{
			name:     "replay with partition",
			args:     []string{"--replay", "in.pcap", "--partition", "10.0.0.5"},
			contains: "--partition",
		},
		{
			name:     "bad log level",
			args:     []string{"--log-level", "loud", "10.0.0.5"},
			contains: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Empty(t, out)
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestNumericArgumentAfterDashes(t *testing.T) {
	_, err := execute(t, "--", "10.0.0.5", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid IP address or port number: "-1"`)
}

func TestReplayRun(t *testing.T) {
	in := writeCapture(t, "10.0.0.5")
	replayOut := filepath.Join(t.TempDir(), "out.pcap")

	out, err := execute(t, "--replay", in, "--replay-out", replayOut, "10.0.0.5", "2001:db8::5", "8080")
	require.NoError(t, err)
	assert.Equal(t, "Reflect IP addresses:\n"+
		"  10.0.0.5\n"+
		"  2001:db8::5\n"+
		"Shield Ports:\n"+
		"  8080\n"+
		"Reflection in progress...\n", out)
	assert.Equal(t, 1, countPackets(t, replayOut))
}

func TestReplayRunWithoutShieldPorts(t *testing.T) {
	in := writeCapture(t, "10.0.0.9")

	out, err := execute(t, "--replay", in, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "Reflect IP addresses:\n"+
		"  10.0.0.5\n"+
		"Shield Ports:\n"+
		"  None\n"+
		"Reflection in progress...\n", out)
}

func TestReplayMissingCapture(t *testing.T) {
	out, err := execute(t, "--replay", filepath.Join(t.TempDir(), "missing.pcap"), "10.0.0.5")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotContains(t, out, "Reflection in progress...")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "retroflect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reflect:
  - 10.0.0.5
shield:
  - "80"
priority: -10
`), 0o600))
	in := writeCapture(t, "10.0.0.5")

	// the file alone is enough to run
	out, err := execute(t, "-c", path, "--replay", in)
	require.NoError(t, err)
	assert.Contains(t, out, "  10.0.0.5\nShield Ports:\n  80\n")

	// positional arguments come first
	out, err = execute(t, "-c", path, "--replay", in, "10.0.0.7")
	require.NoError(t, err)
	assert.Contains(t, out, "  10.0.0.7\n  10.0.0.5\n")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("reflect:\n  - 10.0.0.5\npriority: 99999\n"), 0o600))
	_, err = execute(t, "-c", bad, "--replay", in)
	var prioErr *config.PriorityError
	assert.True(t, errors.As(err, &prioErr))
}

func TestLogFile(t *testing.T) {
	in := writeCapture(t, "10.0.0.5")
	logFile := filepath.Join(t.TempDir(), "retroflect.log")

	_, err := execute(t, "--verbose", "--log-file", logFile, "--replay", in, "10.0.0.5")
	require.NoError(t, err)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG]")
	assert.Contains(t, string(data), "ip.DstAddr == 10.0.0.5")
}

func TestErrorMessage(t *testing.T) {
	denied := &divert.EngineError{Op: "opening WinDivert handle", Code: 5, Err: divert.ErrAccessDenied}
	assert.Contains(t, errorMessage(denied), "Administrator")
	assert.Contains(t, errorMessage(denied), "error code: 5")

	other := errors.New("boom")
	assert.Equal(t, "boom", errorMessage(other))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "Go Version: go")
}
