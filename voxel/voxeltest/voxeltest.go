// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package voxeltest provides fixtures shared by the voxel package's
// own tests: deterministic sample data and a trivial in-memory device
// pair, so test cases read as short assertions about coherence
// behavior rather than boilerplate setup.
package voxeltest

import (
	"math/rand"

	"github.com/medvolume/voxcore/accel"
	"github.com/medvolume/voxcore/accel/memdev"
)

// Pattern returns n scalars of type dt, deterministically derived from
// seed, tightly packed. The same (dt, n, seed) triple always yields
// the same bytes, which is what round-trip comparisons in the voxel
// tests rely on.
func Pattern(dt accel.DataType, n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, n*dt.Size())
	r.Read(buf)
	return buf
}

// NewDevicePair returns two independent in-memory devices, named "a"
// and "b". Tests that need to exercise a cross-device transfer path
// (no inference is ever made between sibling devices) use this instead
// of a single device.
func NewDevicePair() (a, b *memdev.Device) {
	return memdev.New("a"), memdev.New("b")
}
