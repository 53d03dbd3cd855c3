// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. RETROFLECT_PRIORITY.
const EnvPrefix = "RETROFLECT"

// File is the optional YAML configuration. Reflect entries must be addresses
// and shield entries must be ports; both go through the same parsing as
// positional arguments.
type File struct {
	Reflect   []string `mapstructure:"reflect"`
	Shield    []string `mapstructure:"shield"`
	Priority  int      `mapstructure:"priority"`
	LogLevel  string   `mapstructure:"log-level"`
	LogFile   string   `mapstructure:"log-file"`
	Partition bool     `mapstructure:"partition"`
}

// Load reads the file at path. Environment variables override file values.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := ValidatePriority(f.Priority); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &f, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("priority", DefaultPriority)
	v.SetDefault("log-level", "warn")
	v.SetDefault("log-file", "")
	v.SetDefault("partition", false)
}

// Targets classifies the file's reflect and shield entries.
func (f *File) Targets() (Targets, error) {
	var t Targets
	for _, s := range f.Reflect {
		if addr, err := ParseIPv4(s); err == nil {
			t.Reflect.IPv4 = append(t.Reflect.IPv4, addr)
			continue
		}
		addr, err := ParseIPv6(s)
		if err != nil {
			return Targets{}, &ArgError{Arg: s, Err: fmt.Errorf("not an IP address")}
		}
		t.Reflect.IPv6 = append(t.Reflect.IPv6, addr)
	}
	for _, s := range f.Shield {
		port, err := ParsePort(s)
		if err != nil {
			return Targets{}, &ArgError{Arg: s, Err: err}
		}
		t.Shield = append(t.Shield, port)
	}
	return t, nil
}

// Merge appends other's addresses and ports to t.
func (t Targets) Merge(other Targets) Targets {
	var out Targets
	out.Reflect.IPv4 = append(append(out.Reflect.IPv4, t.Reflect.IPv4...), other.Reflect.IPv4...)
	out.Reflect.IPv6 = append(append(out.Reflect.IPv6, t.Reflect.IPv6...), other.Reflect.IPv6...)
	out.Shield = append(append(out.Shield, t.Shield...), other.Shield...)
	return out
}
