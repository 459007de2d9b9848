// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package accel defines the interfaces that an accelerator device manager
// and accelerator runtime must satisfy for the voxel package to use them.
//
// The device manager that enumerates accelerators, and the runtime that
// backs buffer/image allocation and host<->device transfer, are not part
// of this module: this package only describes the contract that voxel
// consumes. A concrete implementation is free to wrap OpenCL, CUDA, Metal
// or any other accelerator API, as long as it satisfies Device. Package
// accel/memdev provides an in-memory reference implementation used by
// this module's own tests.
package accel

import "errors"

// DataType identifies the scalar type of a voxel's components.
type DataType int

// Supported scalar types.
const (
	F32 DataType = iota
	I8
	U8
	I16
	U16
)

// Size returns the number of bytes occupied by a single scalar of type d.
// It panics if d is not one of the defined DataType values.
func (d DataType) Size() int {
	switch d {
	case F32:
		return 4
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	default:
		panic("accel: undefined DataType")
	}
}

// String returns a human readable name for d.
func (d DataType) String() string {
	switch d {
	case F32:
		return "F32"
	case I8:
		return "I8"
	case U8:
		return "U8"
	case I16:
		return "I16"
	case U16:
		return "U16"
	default:
		return "invalid"
	}
}

// Valid reports whether d is one of the defined DataType values.
func (d DataType) Valid() bool { return d >= F32 && d <= U16 }

// ErrFatal means that a Device is in an unrecoverable state.
// It is grounded on driver.ErrFatal in the teacher pack: callers that
// see this error should destroy every resource they created on the
// device and stop using it.
var ErrFatal = errors.New("accel: fatal device error")

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface allocate resources that are not
// managed by the garbage collector, so Destroy must be called
// explicitly to release them.
type Destroyer interface {
	Destroy()
}

// Buffer is a linear device allocation.
type Buffer interface {
	Destroyer

	// Len returns the capacity of the buffer, in bytes.
	// This value is immutable for the lifetime of the buffer.
	Len() int
}

// Image2D is a device-native two-dimensional image object.
type Image2D interface {
	Destroyer

	Width() int
	Height() int
	// Channels returns the number of channels the image was allocated
	// with. This may be 4 even when the logical component count is 3,
	// per the accelerator runtime's lack of 3-channel image formats.
	Channels() int
}

// Image3D is a device-native three-dimensional image object.
type Image3D interface {
	Destroyer

	Width() int
	Height() int
	Depth() int
	Channels() int
}

// Device is the interface that a device handle, supplied by an
// out-of-scope device manager, must satisfy.
//
// A Device value doubles as the "device handle" of the specification:
// implementations are expected to be comparable (a pointer or a small
// value type), since voxel uses Device values as map keys to key its
// per-device representation table.
//
// All methods block the calling goroutine until the operation
// completes; there is no asynchronous completion signal, matching the
// synchronous transfer-primitive contract of the specification.
type Device interface {
	// Name returns a human-readable identifier for the device.
	Name() string

	// NewBuffer allocates a linear device buffer able to hold
	// scalarCount scalars of type dt. Initial contents are
	// unspecified.
	NewBuffer(dt DataType, scalarCount int) (Buffer, error)

	// NewImage2D allocates a device-native 2D image object with the
	// given channel count. Initial contents are unspecified.
	NewImage2D(dt DataType, channels, width, height int) (Image2D, error)

	// NewImage3D allocates a device-native 3D image object with the
	// given channel count. Initial contents are unspecified.
	NewImage3D(dt DataType, channels, width, height, depth int) (Image3D, error)

	// CopyHostToBuffer copies len(src) bytes from host memory into
	// dst, starting at offset 0. dst must have capacity >= len(src).
	CopyHostToBuffer(dst Buffer, src []byte) error

	// CopyBufferToHost copies len(dst) bytes from src into host
	// memory. src must have capacity >= len(dst).
	CopyBufferToHost(dst []byte, src Buffer) error

	// CopyBufferToImage2D copies src's bytes into dst. src's capacity
	// must equal dst.Channels()*dst.Width()*dst.Height()*dt.Size().
	// No channel repacking is performed; src and dst must already
	// agree on channel count.
	CopyBufferToImage2D(dst Image2D, src Buffer) error

	// CopyImage2DToBuffer copies src's contents into dst. Same
	// size/channel-count contract as CopyBufferToImage2D.
	CopyImage2DToBuffer(dst Buffer, src Image2D) error

	// CopyBufferToImage3D is the 3D counterpart of
	// CopyBufferToImage2D.
	CopyBufferToImage3D(dst Image3D, src Buffer) error

	// CopyImage3DToBuffer is the 3D counterpart of
	// CopyImage2DToBuffer.
	CopyImage3DToBuffer(dst Buffer, src Image3D) error
}
