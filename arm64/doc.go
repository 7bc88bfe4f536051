// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package arm64 provides the ARMv8-A memory, cache and event operations
// required to start secondary cores.
//
// The Machine type is only available on arm64 targets.
package arm64

// CacheLineSize is the Cortex-A53 data cache line size.
const CacheLineSize = 64
