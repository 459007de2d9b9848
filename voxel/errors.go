// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package voxel

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Image methods. Check against these with
// errors.Is.
var (
	// ErrUninitialized is returned by the access methods (HostAccess,
	// DeviceBufferAccess, DeviceImage2DAccess, DeviceImage3DAccess)
	// when called on an Image before Create2D/Create3D has succeeded.
	// The geometry getters return zero values and Close is a no-op in
	// that state.
	ErrUninitialized = errors.New("voxel: image not initialized")

	// ErrAlreadyInitialized is returned by Create2D/Create3D when
	// called on an Image that already holds data.
	ErrAlreadyInitialized = errors.New("voxel: image already initialized")

	// ErrDimensionMismatch is returned when a 2D access is requested
	// on a 3D image, or vice versa.
	ErrDimensionMismatch = errors.New("voxel: access dimensionality does not match image")

	// ErrAccessConflict is returned when an access request cannot be
	// granted because it would violate the outstanding-access rules
	// of §5 (a pending write excludes everything else; concurrent
	// reads of the same representation are the only thing allowed
	// alongside each other).
	ErrAccessConflict = errors.New("voxel: access conflicts with an outstanding access")

	// ErrDeviceFailure wraps any error returned by the accelerator
	// runtime during materialization. Use errors.Unwrap or errors.Is
	// to test for it; the wrapped error carries the runtime's own
	// diagnostic text.
	ErrDeviceFailure = errors.New("voxel: accelerator transfer failed")
)

// errInvalidArgumentPrefix is the prefix every InvalidArgument error
// message starts with. There is no sentinel value for InvalidArgument,
// since its text varies with the offending argument; test for it with
// strings.HasPrefix(err.Error(), errInvalidArgumentPrefix).
const errInvalidArgumentPrefix = "voxel: invalid argument: "

func errInvalidArgument(reason string) error {
	return errors.New(errInvalidArgumentPrefix + reason)
}

// wrapDeviceErr wraps a non-nil accelerator error as ErrDeviceFailure.
// A nil err passes through unchanged.
func wrapDeviceErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDeviceFailure, err)
}
