// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package voxel implements a coherence-managed N-dimensional voxel
// image that can simultaneously maintain a host representation and one
// representation per accelerator device, transparently materializing
// and invalidating them as callers request access.
//
// An Image is created once, via Create2D or Create3D, and accessed
// through scoped tokens obtained from HostAccess, DeviceBufferAccess,
// DeviceImage2DAccess or DeviceImage3DAccess. Go has no destructors, so
// every successful access call must be paired with a deferred call to
// the returned token's Release method:
//
//	tok, err := img.HostAccess(voxel.Read)
//	if err != nil {
//		return err
//	}
//	defer tok.Release()
//
// Release is idempotent; using a token after it has been released
// panics, mirroring the "use after Free" misuse detection the teacher
// pack applies to its own GPU resource wrappers.
package voxel

import (
	"sync"

	"github.com/medvolume/voxcore/accel"
)

// Mode selects whether an access observes or replaces an image's
// contents.
type Mode int

const (
	// Read grants read-only access to the requested representation.
	// Any number of Read accesses to the same representation may be
	// outstanding simultaneously.
	Read Mode = iota

	// ReadWrite grants exclusive read-write access to the requested
	// representation. Acquiring a ReadWrite access invalidates every
	// other representation, so the accessed one is the sole up-to-date
	// representation when it is released (invariant I4).
	ReadWrite
)

// accessState tracks the outstanding accesses of an Image, per §5 of
// the specification: a write excludes everything else, and concurrent
// reads are only permitted against the same representation.
type accessState struct {
	writeActive bool
	readKey     reprKey
	readCount   int
}

// Image is a single N-dimensional voxel dataset that may have a host
// representation and, simultaneously, one representation per
// accelerator device. The zero value is not usable; construct one with
// New and initialize it with Create2D or Create3D.
type Image struct {
	mu sync.Mutex

	initialized bool
	width       int
	height      int
	depth       int
	components  int
	dtype       accel.DataType
	dims        int // 2 or 3, fixed at creation time (invariant I5)

	host hostRepr
	devs map[accel.Device]*deviceRepr
	coh  coherence

	access accessState
}

// New returns an uninitialized Image. Call Create2D or Create3D before
// any other method.
func New() *Image {
	return &Image{}
}

// Create2D initializes img as a width x height image with the given
// component count and scalar type, with its first representation
// allocated on target (or on the host, if target is nil), and
// optionally seeded with data.
//
// data, if non-nil, must hold at least width*height*components values
// of the given type, tightly packed (no channel padding regardless of
// components), in row-major order. A nil data leaves the initial
// representation's contents unspecified.
//
// Create2D returns ErrAlreadyInitialized if img already holds data.
func (img *Image) Create2D(width, height int, dt accel.DataType, components int, target accel.Device, data []byte) error {
	return img.create(width, height, 1, 2, dt, components, target, data)
}

// Create3D is the three-dimensional counterpart of Create2D.
func (img *Image) Create3D(width, height, depth int, dt accel.DataType, components int, target accel.Device, data []byte) error {
	return img.create(width, height, depth, 3, dt, components, target, data)
}

func (img *Image) create(width, height, depth, dims int, dt accel.DataType, components int, target accel.Device, data []byte) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.initialized {
		return ErrAlreadyInitialized
	}
	switch {
	case width < 1 || height < 1 || depth < 1:
		return errInvalidArgument("width, height and depth must be positive")
	case components < 1 || components > 4:
		return errInvalidArgument("components must be in [1,4]")
	case !dt.Valid():
		return errInvalidArgument("unrecognized data type")
	}

	img.width, img.height, img.depth = width, height, depth
	img.dims = dims
	img.components = components
	img.dtype = dt
	img.devs = make(map[accel.Device]*deviceRepr)
	img.coh = newCoherence()

	need := img.hostBytes()
	if data != nil && len(data) < need {
		return errInvalidArgument("data shorter than the representation's required size")
	}

	var key reprKey
	if target == nil {
		key = reprKey{kind: kindHost}
		img.host.data = make([]byte, need)
		if data != nil {
			copy(img.host.data, data[:need])
		}
	} else {
		key = reprKey{kind: kindDeviceBuffer, dev: target}
		dr := img.deviceRepr(target)
		buf, err := target.NewBuffer(dt, img.scalarCount())
		if err != nil {
			return wrapDeviceErr(err)
		}
		dr.buf = buf
		if data != nil {
			if err := target.CopyHostToBuffer(buf, data[:need]); err != nil {
				return wrapDeviceErr(err)
			}
		}
	}
	img.coh.setPresent(key, true)
	img.coh.setUpToDate(key, true)
	img.initialized = true
	return nil
}

// deviceRepr returns (allocating if necessary) the per-device
// representation bookkeeping slot for dev. Callers must hold img.mu.
func (img *Image) deviceRepr(dev accel.Device) *deviceRepr {
	dr, ok := img.devs[dev]
	if !ok {
		dr = &deviceRepr{}
		img.devs[dev] = dr
	}
	return dr
}

func (img *Image) voxelCount() int  { return img.width * img.height * img.depth }
func (img *Image) scalarCount() int { return img.voxelCount() * img.components }
func (img *Image) hostBytes() int   { return img.scalarCount() * img.dtype.Size() }

// imageChannels returns the channel count a DeviceImage2D/3D
// representation is allocated with: components, padded up to 4 when
// components == 3, per §4.5 (the accelerator runtime has no
// 3-channel image format).
func (img *Image) imageChannels() int {
	if img.components == 3 {
		return 4
	}
	return img.components
}

// Width returns the image's width, in voxels.
func (img *Image) Width() int { img.mu.Lock(); defer img.mu.Unlock(); return img.width }

// Height returns the image's height, in voxels.
func (img *Image) Height() int { img.mu.Lock(); defer img.mu.Unlock(); return img.height }

// Depth returns the image's depth, in voxels. It is 1 for 2D images.
func (img *Image) Depth() int { img.mu.Lock(); defer img.mu.Unlock(); return img.depth }

// Components returns the number of logical components per voxel.
func (img *Image) Components() int { img.mu.Lock(); defer img.mu.Unlock(); return img.components }

// DataType returns the scalar type of the image's components.
func (img *Image) DataType() accel.DataType { img.mu.Lock(); defer img.mu.Unlock(); return img.dtype }

// Dimensions returns 2 or 3, according to whether the image was
// created with Create2D or Create3D. This value never changes for the
// lifetime of the image (invariant I5).
func (img *Image) Dimensions() int { img.mu.Lock(); defer img.mu.Unlock(); return img.dims }

// acquire validates and grants an access request for key, materializing
// the representation as a side effect. Callers must hold no lock.
func (img *Image) acquire(key reprKey, mode Mode) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.initialized {
		return ErrUninitialized
	}
	if key.kind == kindDeviceImage2D && img.dims != 2 {
		return ErrDimensionMismatch
	}
	if key.kind == kindDeviceImage3D && img.dims != 3 {
		return ErrDimensionMismatch
	}
	if img.access.writeActive {
		return ErrAccessConflict
	}
	if mode == ReadWrite {
		if img.access.readCount > 0 {
			return ErrAccessConflict
		}
	} else if img.access.readCount > 0 && img.access.readKey != key {
		return ErrAccessConflict
	}

	if err := img.materialize(key, mode); err != nil {
		return err
	}

	if mode == ReadWrite {
		img.access.writeActive = true
	} else {
		img.access.readKey = key
		img.access.readCount++
	}
	return nil
}

// release ends one outstanding access of the given mode.
func (img *Image) release(mode Mode) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if mode == ReadWrite {
		img.access.writeActive = false
		return
	}
	if img.access.readCount > 0 {
		img.access.readCount--
		if img.access.readCount == 0 {
			img.access.readKey = reprKey{}
		}
	}
}

// HostAccess grants access to the image's host representation,
// materializing it if necessary.
func (img *Image) HostAccess(mode Mode) (*HostAccessToken, error) {
	key := reprKey{kind: kindHost}
	if err := img.acquire(key, mode); err != nil {
		return nil, err
	}
	return &HostAccessToken{img: img, mode: mode}, nil
}

// DeviceBufferAccess grants access to the image's linear representation
// on dev, materializing it if necessary.
func (img *Image) DeviceBufferAccess(mode Mode, dev accel.Device) (*DeviceBufferAccessToken, error) {
	if dev == nil {
		return nil, errInvalidArgument("device must not be nil")
	}
	key := reprKey{kind: kindDeviceBuffer, dev: dev}
	if err := img.acquire(key, mode); err != nil {
		return nil, err
	}
	return &DeviceBufferAccessToken{img: img, dev: dev, mode: mode}, nil
}

// DeviceImage2DAccess grants access to the image's 2D device-native
// representation on dev. It fails with ErrDimensionMismatch if img was
// created with Create3D.
func (img *Image) DeviceImage2DAccess(mode Mode, dev accel.Device) (*DeviceImage2DAccessToken, error) {
	if dev == nil {
		return nil, errInvalidArgument("device must not be nil")
	}
	key := reprKey{kind: kindDeviceImage2D, dev: dev}
	if err := img.acquire(key, mode); err != nil {
		return nil, err
	}
	return &DeviceImage2DAccessToken{img: img, dev: dev, mode: mode}, nil
}

// DeviceImage3DAccess grants access to the image's 3D device-native
// representation on dev. It fails with ErrDimensionMismatch if img was
// created with Create2D.
func (img *Image) DeviceImage3DAccess(mode Mode, dev accel.Device) (*DeviceImage3DAccessToken, error) {
	if dev == nil {
		return nil, errInvalidArgument("device must not be nil")
	}
	key := reprKey{kind: kindDeviceImage3D, dev: dev}
	if err := img.acquire(key, mode); err != nil {
		return nil, err
	}
	return &DeviceImage3DAccessToken{img: img, dev: dev, mode: mode}, nil
}

// Close releases every accelerator resource the image holds and leaves
// it uninitialized. It fails with ErrAccessConflict if any access
// token is outstanding. Close on an already-closed or never-created
// Image is a no-op.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.initialized {
		return nil
	}
	if img.access.writeActive || img.access.readCount > 0 {
		return ErrAccessConflict
	}
	for _, dr := range img.devs {
		if dr.buf != nil {
			dr.buf.Destroy()
		}
		if dr.img2 != nil {
			dr.img2.Destroy()
		}
		if dr.img3 != nil {
			dr.img3.Destroy()
		}
	}
	img.devs = nil
	img.host = hostRepr{}
	img.coh = coherence{}
	img.initialized = false
	return nil
}
