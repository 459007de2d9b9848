// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package voxel

import "github.com/medvolume/voxcore/accel"

// HostAccessToken is a scoped handle to an image's host representation,
// obtained from Image.HostAccess. Callers must call Release exactly
// once, typically via defer, as soon as the access is done.
type HostAccessToken struct {
	img      *Image
	mode     Mode
	released bool
}

// Bytes returns the host representation's backing storage. The slice
// aliases the Image's internal buffer and a ReadWrite token's writes
// to it are only safe until Release is called. Calling Bytes after
// Release panics; a slice obtained earlier is not invalidated, so
// using it after Release goes undetected.
func (t *HostAccessToken) Bytes() []byte {
	if t.released {
		panic("voxel: use of released HostAccessToken")
	}
	t.img.mu.Lock()
	defer t.img.mu.Unlock()
	return t.img.host.data
}

// Release ends the access. It is idempotent.
func (t *HostAccessToken) Release() {
	if t.released {
		return
	}
	t.released = true
	t.img.release(t.mode)
}

// DeviceBufferAccessToken is a scoped handle to an image's linear
// representation on a device, obtained from Image.DeviceBufferAccess.
type DeviceBufferAccessToken struct {
	img      *Image
	dev      accel.Device
	mode     Mode
	released bool
}

// Buffer returns the underlying accelerator buffer.
func (t *DeviceBufferAccessToken) Buffer() accel.Buffer {
	if t.released {
		panic("voxel: use of released DeviceBufferAccessToken")
	}
	t.img.mu.Lock()
	defer t.img.mu.Unlock()
	return t.img.devs[t.dev].buf
}

// Release ends the access. It is idempotent.
func (t *DeviceBufferAccessToken) Release() {
	if t.released {
		return
	}
	t.released = true
	t.img.release(t.mode)
}

// DeviceImage2DAccessToken is a scoped handle to an image's 2D
// device-native representation, obtained from Image.DeviceImage2DAccess.
type DeviceImage2DAccessToken struct {
	img      *Image
	dev      accel.Device
	mode     Mode
	released bool
}

// Image returns the underlying accelerator 2D image object.
func (t *DeviceImage2DAccessToken) Image() accel.Image2D {
	if t.released {
		panic("voxel: use of released DeviceImage2DAccessToken")
	}
	t.img.mu.Lock()
	defer t.img.mu.Unlock()
	return t.img.devs[t.dev].img2
}

// Release ends the access. It is idempotent.
func (t *DeviceImage2DAccessToken) Release() {
	if t.released {
		return
	}
	t.released = true
	t.img.release(t.mode)
}

// DeviceImage3DAccessToken is a scoped handle to an image's 3D
// device-native representation, obtained from Image.DeviceImage3DAccess.
type DeviceImage3DAccessToken struct {
	img      *Image
	dev      accel.Device
	mode     Mode
	released bool
}

// Image returns the underlying accelerator 3D image object.
func (t *DeviceImage3DAccessToken) Image() accel.Image3D {
	if t.released {
		panic("voxel: use of released DeviceImage3DAccessToken")
	}
	t.img.mu.Lock()
	defer t.img.mu.Unlock()
	return t.img.devs[t.dev].img3
}

// Release ends the access. It is idempotent.
func (t *DeviceImage3DAccessToken) Release() {
	if t.released {
		return
	}
	t.released = true
	t.img.release(t.mode)
}
