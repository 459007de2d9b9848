// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package voxel

import "github.com/medvolume/voxcore/accel"

// reprKind identifies which of the four representation families a
// reprKey refers to.
type reprKind int

const (
	kindHost reprKind = iota
	kindDeviceBuffer
	kindDeviceImage2D
	kindDeviceImage3D
)

// reprKey uniquely identifies one representation of an image: its
// kind and, for device representations, the owning device. dev is the
// nil interface value for kindHost, which is why reprKey is safe to
// use as a map key even though accel.Device values come from an
// external device manager.
type reprKey struct {
	kind reprKind
	dev  accel.Device
}

// reprFlags holds the two coherence booleans the specification assigns
// to every representation key.
type reprFlags struct {
	present  bool
	upToDate bool
}

// hostRepr is the payload of the HostBuffer representation: a linear
// byte array of exactly img.hostBytes() bytes, tightly packed at
// img.components channels.
type hostRepr struct {
	data []byte
}

// deviceRepr is the payload of every representation an image may have
// on a single device. The keyed-uniqueness rule from §3 of the
// specification (at most one DeviceBuffer, DeviceImage2D and
// DeviceImage3D per device) is enforced by construction: each field
// can hold at most one value.
type deviceRepr struct {
	buf  accel.Buffer
	img2 accel.Image2D
	img3 accel.Image3D
}
