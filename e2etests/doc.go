// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package e2etests contains end-to-end tests for the retroflect binary. They
// build the CLI, run it as a subprocess and check its exit code and output.
// Live diversion only runs on Windows with Administrator privileges; every
// other case replays a capture.
package e2etests
