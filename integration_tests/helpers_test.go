// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build integration && windows

package integration_tests

import (
	"testing"

	"golang.org/x/sys/windows"

	"github.com/DataDog/datadog-retroflect/windivert"
)

// reflectTarget is a documentation address, nothing answers it.
const reflectTarget = "198.51.100.2"

func isAdmin() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

func requireEngine(t *testing.T) {
	t.Helper()
	if !isAdmin() {
		t.Skip("Test requires admin privileges on Windows")
	}
	if err := windivert.Load(); err != nil {
		t.Skipf("WinDivert is not available: %s", err)
	}
}
