// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build nosmp

package platform

// secondary cores are left parked
const smpEnabled = false
