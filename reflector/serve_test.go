// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package reflector

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-retroflect/config"
	"github.com/DataDog/datadog-retroflect/divert"
)

func testTargets() config.Targets {
	return config.Targets{
		Reflect: config.ReflectAddressSet{
			IPv4: []netip.Addr{netip.MustParseAddr("10.0.0.5")},
			IPv6: []netip.Addr{netip.MustParseAddr("2001:db8::5")},
		},
		Shield: config.ShieldPortSet{8080},
	}
}

func TestPartitions(t *testing.T) {
	targets := testTargets()

	single := Partitions(targets, false)
	require.Len(t, single, 1)
	assert.Equal(t, "all", single[0].Name)
	assert.Equal(t, targets.Reflect, single[0].Reflect)
	assert.Equal(t, targets.Shield, single[0].Shield)

	split := Partitions(targets, true)
	require.Len(t, split, 2)
	assert.Equal(t, "ipv4", split[0].Name)
	assert.Equal(t, targets.Reflect.IPv4, split[0].Reflect.IPv4)
	assert.Empty(t, split[0].Reflect.IPv6)
	assert.Equal(t, config.ShieldPortSet{8080}, split[0].Shield)
	assert.Equal(t, "ipv6", split[1].Name)
	assert.Equal(t, targets.Reflect.IPv6, split[1].Reflect.IPv6)
	assert.Empty(t, split[1].Shield)

	v6only := Partitions(config.Targets{
		Reflect: config.ReflectAddressSet{IPv6: targets.Reflect.IPv6},
		Shield:  targets.Shield,
	}, true)
	require.Len(t, v6only, 1)
	assert.Equal(t, config.ShieldPortSet{8080}, v6only[0].Shield)
}

func TestServeOpensWithFilterAndClosesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSession := divert.NewMockSession(ctrl)

	var got divert.OpenParams
	opener := func(params divert.OpenParams) (divert.Session, error) {
		got = params
		return mockSession, nil
	}

	gomock.InOrder(
		expectClosed(mockSession),
		mockSession.EXPECT().Close().Return(nil).Times(1),
	)

	targets, err := config.ParseArgs([]string{"10.0.0.5", "8080"})
	require.NoError(t, err)
	p := Partitions(targets, false)[0]

	_, err = Serve(context.Background(), opener, p, Params{Priority: 823})
	require.NoError(t, err)

	assert.Equal(t, "!loopback and (tcp or udp) and ((outbound and (ip.DstAddr == 10.0.0.5)) or (inbound and (tcp.DstPort == 8080 or udp.DstPort == 8080)))", got.Filter)
	assert.Equal(t, divert.LayerNetwork, got.Layer)
	assert.Equal(t, int16(823), got.Priority)
	assert.Zero(t, got.Flags)
}

func TestServeClosesOnFatalError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSession := divert.NewMockSession(ctrl)
	opener := func(divert.OpenParams) (divert.Session, error) { return mockSession, nil }

	gomock.InOrder(
		mockSession.EXPECT().Recv(gomock.Any()).DoAndReturn(recvPacket([]byte{1, 2, 3}, divert.Address{Direction: divert.Outbound})),
		// a failing close is logged, not returned
		mockSession.EXPECT().Close().Return(errors.New("close failed")).Times(1),
	)

	_, err := Serve(context.Background(), opener, Partitions(testTargets(), false)[0], Params{})
	var protoErr *ProtocolError
	assert.True(t, errors.As(err, &protoErr))
}

func TestServeOpenError(t *testing.T) {
	openErr := &divert.EngineError{Op: "opening WinDivert handle", Code: 5, Err: divert.ErrAccessDenied}
	opener := func(divert.OpenParams) (divert.Session, error) { return nil, openErr }

	_, err := Serve(context.Background(), opener, Partitions(testTargets(), false)[0], Params{})
	require.ErrorIs(t, err, openErr)
	assert.Equal(t, ErrCodeDenied, ClassifyError(err).Code)
}

func TestServeRejectsEmptyPartition(t *testing.T) {
	opener := func(divert.OpenParams) (divert.Session, error) {
		t.Fatal("opener must not be called")
		return nil, nil
	}
	_, err := Serve(context.Background(), opener, Partition{Name: "empty", Shield: config.ShieldPortSet{80}}, Params{})
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfig, ClassifyError(err).Code)
}

func TestRunAllStopsOtherPartitionsOnFatalError(t *testing.T) {
	ctrl := gomock.NewController(t)
	v4Session := divert.NewMockSession(ctrl)
	v6Session := divert.NewMockSession(ctrl)

	var mu sync.Mutex
	opened := map[string]int{}
	opener := func(params divert.OpenParams) (divert.Session, error) {
		mu.Lock()
		defer mu.Unlock()
		if strings.Contains(params.Filter, "ipv6.DstAddr") {
			opened["ipv6"]++
			return v6Session, nil
		}
		opened["ipv4"]++
		return v4Session, nil
	}

	// the IPv4 partition fails on a malformed packet
	v4Session.EXPECT().Recv(gomock.Any()).DoAndReturn(recvPacket([]byte{0x45}, divert.Address{Direction: divert.Outbound}))
	v4Session.EXPECT().Close().Return(nil)
	v4Session.EXPECT().Shutdown().Return(nil).AnyTimes()

	// the IPv6 partition blocks until it is shut down
	shutdown := make(chan struct{})
	var once sync.Once
	v6Session.EXPECT().Shutdown().DoAndReturn(func() error {
		once.Do(func() { close(shutdown) })
		return nil
	}).MinTimes(1)
	v6Session.EXPECT().Recv(gomock.Any()).DoAndReturn(func([]byte) (int, divert.Address, error) {
		<-shutdown
		return 0, divert.Address{}, divert.ErrClosed
	})
	v6Session.EXPECT().Close().Return(nil)

	err := RunAll(context.Background(), opener, Partitions(testTargets(), true), Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition ipv4")
	var protoErr *ProtocolError
	assert.True(t, errors.As(err, &protoErr))
	assert.Equal(t, map[string]int{"ipv4": 1, "ipv6": 1}, opened)
}

func TestRunAllCleanStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSession := divert.NewMockSession(ctrl)
	opener := func(divert.OpenParams) (divert.Session, error) { return mockSession, nil }

	expectClosed(mockSession)
	mockSession.EXPECT().Close().Return(nil)

	require.NoError(t, RunAll(context.Background(), opener, Partitions(testTargets(), false), Params{}))
}
