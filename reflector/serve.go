// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package reflector

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/DataDog/datadog-retroflect/config"
	"github.com/DataDog/datadog-retroflect/divert"
	"github.com/DataDog/datadog-retroflect/filter"
	"github.com/DataDog/datadog-retroflect/log"
)

// Partition is the part of the targets handled by one session.
type Partition struct {
	Name    string
	Reflect config.ReflectAddressSet
	Shield  config.ShieldPortSet
}

// Partitions splits targets into the partitions to run. Without split there
// is a single partition. With split, IPv4 and IPv6 reflect addresses get a
// session each, and the shield ports go to the first one.
func Partitions(targets config.Targets, split bool) []Partition {
	if !split {
		return []Partition{{Name: "all", Reflect: targets.Reflect, Shield: targets.Shield}}
	}

	var parts []Partition
	shield := targets.Shield
	if len(targets.Reflect.IPv4) > 0 {
		parts = append(parts, Partition{
			Name:    "ipv4",
			Reflect: config.ReflectAddressSet{IPv4: targets.Reflect.IPv4},
			Shield:  shield,
		})
		shield = nil
	}
	if len(targets.Reflect.IPv6) > 0 {
		parts = append(parts, Partition{
			Name:    "ipv6",
			Reflect: config.ReflectAddressSet{IPv6: targets.Reflect.IPv6},
			Shield:  shield,
		})
	}
	return parts
}

// Params configures how sessions are opened.
type Params struct {
	Priority int16
}

// Serve opens a session for p, reflects until ctx is done or a fatal error
// occurs, then closes the session. A failure to close is logged only.
func Serve(ctx context.Context, open divert.Opener, p Partition, params Params) (Stats, error) {
	expr, err := filter.Build(p.Reflect, p.Shield)
	if err != nil {
		return Stats{}, err
	}
	if err := filter.Validate(expr); err != nil {
		return Stats{}, fmt.Errorf("invalid filter for partition %s: %w", p.Name, err)
	}
	log.Debugf("partition %s filter: %s", p.Name, expr)

	session, err := open(divert.OpenParams{
		Filter:   expr,
		Layer:    divert.LayerNetwork,
		Priority: params.Priority,
	})
	if err != nil {
		return Stats{}, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			_ = log.Errorf("partition %s: %s", p.Name, err)
		}
	}()

	r := New(session)
	log.Debugf("partition %s: reflector %s started", p.Name, r.ID())
	err = r.Run(ctx)
	return r.Stats(), err
}

// RunAll serves every partition concurrently. The first fatal error stops the
// other partitions and is returned.
func RunAll(ctx context.Context, open divert.Opener, parts []Partition, params Params) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range parts {
		p := p
		g.Go(func() error {
			stats, err := Serve(ctx, open, p, params)
			if err != nil {
				if len(parts) > 1 {
					return fmt.Errorf("partition %s: %w", p.Name, err)
				}
				return err
			}
			log.Infof("partition %s stopped: reflected %d packets, shielded %d, loop-dropped %d",
				p.Name, stats.Reflected, stats.Shielded, stats.LoopDropped)
			return nil
		})
	}
	return g.Wait()
}
