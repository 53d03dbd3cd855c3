// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package reflector

import (
	"errors"

	"github.com/DataDog/datadog-retroflect/divert"
)

// absorbSendError classifies the outcome of injecting a reflected packet.
//
// The engine lowers the TTL or hop limit of every impostor packet it injects
// and refuses to send one that reaches zero, reporting host unreachable. A
// reflected packet that comes back around the loop ends that way, so the
// refusal counts as a drop and not as a failure. Any other error is fatal.
func absorbSendError(err error) (dropped bool, fatal error) {
	if err == nil {
		return false, nil
	}
	if errors.Is(err, divert.ErrHostUnreachable) {
		return true, nil
	}
	return false, err
}
