// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build !windows || !(amd64 || arm64)

package windivert

import (
	"github.com/DataDog/datadog-retroflect/divert"
)

// Load always fails on this platform.
func Load() error {
	return divert.ErrUnsupported
}

// Open returns divert.ErrUnsupported on this platform.
func Open(_ divert.OpenParams) (divert.Session, error) {
	return nil, &divert.EngineError{Op: "opening WinDivert handle", Err: divert.ErrUnsupported}
}
