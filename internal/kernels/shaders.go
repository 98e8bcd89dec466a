// Copyright 2026 The SemiStaticLights Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import _ "embed"

// Embedded WGSL kernel sources. Entry point is "main" in every module.

//go:embed shaders/pack_opacity.wgsl
var PackOpacityWGSL string

//go:embed shaders/directional_copy.wgsl
var DirectionalCopyWGSL string

//go:embed shaders/propagate_ambient.wgsl
var PropagateAmbientWGSL string

//go:embed shaders/propagate_upper.wgsl
var PropagateUpperWGSL string

// EntryPoint is the compute entry point of every kernel module.
const EntryPoint = "main"
