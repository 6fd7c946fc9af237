// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build nogpu

package compute

import "github.com/gogpu/gpucontext"

// NewHAL reports ErrNoAdapter in builds without GPU support.
func NewHAL() (Device, error) { return nil, ErrNoAdapter }

// NewHALFromProvider reports ErrNoAdapter in builds without GPU support.
func NewHALFromProvider(gpucontext.DeviceProvider) (Device, error) { return nil, ErrNoAdapter }
