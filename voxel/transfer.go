// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package voxel

import "github.com/medvolume/voxcore/accel"

// transferInto moves data from the up-to-date representation source
// into target, which must already be present (but not up to date).
// Channel padding (§4.5) is applied or removed as needed; host and
// device-buffer representations are always tightly packed, while
// device-image representations are padded to 4 channels whenever
// img.components == 3.
func (img *Image) transferInto(target, source reprKey) error {
	switch target.kind {
	case kindHost:
		return img.populateHostFrom(source)
	case kindDeviceBuffer:
		return img.populateBufferFrom(target.dev, source)
	case kindDeviceImage2D, kindDeviceImage3D:
		return img.populateImageFrom(target, source)
	default:
		panic("voxel: unreachable representation kind")
	}
}

// populateHostFrom copies data from the up-to-date device
// representation source into the already-allocated host
// representation.
func (img *Image) populateHostFrom(source reprKey) error {
	dev := source.dev
	dr := img.devs[dev]
	switch source.kind {
	case kindDeviceBuffer:
		return wrapDeviceErr(dev.CopyBufferToHost(img.host.data, dr.buf))
	case kindDeviceImage2D:
		raw, err := img.readImage2D(dev, dr.img2)
		if err != nil {
			return err
		}
		img.unpackInto(img.host.data, raw)
		return nil
	case kindDeviceImage3D:
		raw, err := img.readImage3D(dev, dr.img3)
		if err != nil {
			return err
		}
		img.unpackInto(img.host.data, raw)
		return nil
	default:
		panic("voxel: unreachable representation kind")
	}
}

// populateBufferFrom copies data from the up-to-date representation
// source into the already-allocated DeviceBuffer representation on
// dev.
func (img *Image) populateBufferFrom(dev accel.Device, source reprKey) error {
	dr := img.deviceRepr(dev)
	switch {
	case source.kind == kindHost:
		return wrapDeviceErr(dev.CopyHostToBuffer(dr.buf, img.host.data))

	case source.dev == dev && source.kind == kindDeviceImage2D:
		if img.imageChannels() == img.components {
			return wrapDeviceErr(dev.CopyImage2DToBuffer(dr.buf, dr.img2))
		}
		raw, err := img.readImage2D(dev, dr.img2)
		if err != nil {
			return err
		}
		return wrapDeviceErr(dev.CopyHostToBuffer(dr.buf, img.packedFrom(raw)))

	case source.dev == dev && source.kind == kindDeviceImage3D:
		if img.imageChannels() == img.components {
			return wrapDeviceErr(dev.CopyImage3DToBuffer(dr.buf, dr.img3))
		}
		raw, err := img.readImage3D(dev, dr.img3)
		if err != nil {
			return err
		}
		return wrapDeviceErr(dev.CopyHostToBuffer(dr.buf, img.packedFrom(raw)))

	default:
		// Cross-device or cross-kind-on-a-different-device: route
		// through the tracked host representation.
		if err := img.ensureHostUpToDateFrom(source); err != nil {
			return err
		}
		return wrapDeviceErr(dev.CopyHostToBuffer(dr.buf, img.host.data))
	}
}

// populateImageFrom copies data from the up-to-date representation
// source into the already-allocated DeviceImage2D/3D representation
// identified by target.
func (img *Image) populateImageFrom(target, source reprKey) error {
	dev := target.dev
	dr := img.deviceRepr(dev)

	var packed []byte
	switch {
	case source.kind == kindHost:
		packed = img.host.data
	case source.kind == kindDeviceBuffer && source.dev == dev:
		if img.imageChannels() == img.components {
			if target.kind == kindDeviceImage2D {
				return wrapDeviceErr(dev.CopyBufferToImage2D(dr.img2, dr.buf))
			}
			return wrapDeviceErr(dev.CopyBufferToImage3D(dr.img3, dr.buf))
		}
		packed = make([]byte, dr.buf.Len())
		if err := dev.CopyBufferToHost(packed, dr.buf); err != nil {
			return wrapDeviceErr(err)
		}
	default:
		if err := img.ensureHostUpToDateFrom(source); err != nil {
			return err
		}
		packed = img.host.data
	}

	raw := packed
	if img.imageChannels() != img.components {
		raw = pack3to4(packed, img.voxelCount(), img.dtype.Size())
	}

	scratch, err := dev.NewBuffer(img.dtype, img.voxelCount()*img.imageChannels())
	if err != nil {
		return wrapDeviceErr(err)
	}
	defer scratch.Destroy()
	if err := dev.CopyHostToBuffer(scratch, raw); err != nil {
		return wrapDeviceErr(err)
	}

	if target.kind == kindDeviceImage2D {
		return wrapDeviceErr(dev.CopyBufferToImage2D(dr.img2, scratch))
	}
	return wrapDeviceErr(dev.CopyBufferToImage3D(dr.img3, scratch))
}

// ensureHostUpToDateFrom is a side-effecting hop: it makes the tracked
// HostBuffer representation present and up to date from source,
// without touching any other representation's flags. It is used to
// stage a transfer when no direct same-device path exists. The host
// representation is deliberately left present afterward (resolved open
// question, §9): a later access to it is then a coherence hit instead
// of a second transfer.
func (img *Image) ensureHostUpToDateFrom(source reprKey) error {
	hostKey := reprKey{kind: kindHost}
	if !img.coh.isPresent(hostKey) {
		if err := img.ensurePresent(hostKey); err != nil {
			return err
		}
	}
	if img.coh.isUpToDate(hostKey) {
		return nil
	}
	if err := img.populateHostFrom(source); err != nil {
		return err
	}
	img.coh.setUpToDate(hostKey, true)
	return nil
}

// readImage2D copies im's full contents (still at im.Channels()
// channels) out to a freshly allocated host byte slice, via a
// transient, untracked scratch buffer.
func (img *Image) readImage2D(dev accel.Device, im accel.Image2D) ([]byte, error) {
	scratch, err := dev.NewBuffer(img.dtype, img.voxelCount()*im.Channels())
	if err != nil {
		return nil, wrapDeviceErr(err)
	}
	defer scratch.Destroy()
	if err := dev.CopyImage2DToBuffer(scratch, im); err != nil {
		return nil, wrapDeviceErr(err)
	}
	raw := make([]byte, scratch.Len())
	if err := dev.CopyBufferToHost(raw, scratch); err != nil {
		return nil, wrapDeviceErr(err)
	}
	return raw, nil
}

// readImage3D is the 3D counterpart of readImage2D.
func (img *Image) readImage3D(dev accel.Device, im accel.Image3D) ([]byte, error) {
	scratch, err := dev.NewBuffer(img.dtype, img.voxelCount()*im.Channels())
	if err != nil {
		return nil, wrapDeviceErr(err)
	}
	defer scratch.Destroy()
	if err := dev.CopyImage3DToBuffer(scratch, im); err != nil {
		return nil, wrapDeviceErr(err)
	}
	raw := make([]byte, scratch.Len())
	if err := dev.CopyBufferToHost(raw, scratch); err != nil {
		return nil, wrapDeviceErr(err)
	}
	return raw, nil
}

// unpackInto writes raw (at img.imageChannels() channels) into dst (at
// img.components channels), removing the padding channel if one was
// added.
func (img *Image) unpackInto(dst, raw []byte) {
	if img.imageChannels() != img.components {
		copy(dst, unpack4to3(raw, img.voxelCount(), img.dtype.Size()))
		return
	}
	copy(dst, raw)
}

// packedFrom returns raw (at img.imageChannels() channels) repacked
// down to img.components channels, removing padding if necessary. It
// does not modify the host representation.
func (img *Image) packedFrom(raw []byte) []byte {
	if img.imageChannels() != img.components {
		return unpack4to3(raw, img.voxelCount(), img.dtype.Size())
	}
	return raw
}
