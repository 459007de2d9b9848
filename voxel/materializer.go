// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package voxel

// materialize ensures that the representation identified by key is
// present and up to date, allocating and transferring data as needed,
// then updates the coherence flags to reflect the requested access
// mode. Callers must hold img.mu.
//
// This is the core algorithm of §4.4: on a miss, it picks a source
// representation (preferring a same-device sibling, then the host,
// then any other up-to-date representation), transfers into key, and
// only then flips the flags — so a transfer failure never leaves the
// coherence table claiming an incomplete representation is valid.
func (img *Image) materialize(key reprKey, mode Mode) error {
	if !img.coh.isPresent(key) {
		if err := img.ensurePresent(key); err != nil {
			return err
		}
	}
	if !img.coh.isUpToDate(key) {
		source, ok := img.pickSource(key)
		if !ok {
			panic("voxel: no up-to-date representation available (invariant I2 violated)")
		}
		if err := img.transferInto(key, source); err != nil {
			return err
		}
	}
	img.coh.setUpToDate(key, true)
	if mode == ReadWrite {
		img.coh.invalidateOthersExcept(key)
	}
	return nil
}

// ensurePresent allocates the backing storage for key if it is not
// already present, without populating it with data. The new flags
// entry is left present=true, up_to_date=false.
func (img *Image) ensurePresent(key reprKey) error {
	switch key.kind {
	case kindHost:
		img.host.data = make([]byte, img.hostBytes())
	case kindDeviceBuffer:
		dr := img.deviceRepr(key.dev)
		buf, err := key.dev.NewBuffer(img.dtype, img.scalarCount())
		if err != nil {
			return wrapDeviceErr(err)
		}
		dr.buf = buf
	case kindDeviceImage2D:
		dr := img.deviceRepr(key.dev)
		im, err := key.dev.NewImage2D(img.dtype, img.imageChannels(), img.width, img.height)
		if err != nil {
			return wrapDeviceErr(err)
		}
		dr.img2 = im
	case kindDeviceImage3D:
		dr := img.deviceRepr(key.dev)
		im, err := key.dev.NewImage3D(img.dtype, img.imageChannels(), img.width, img.height, img.depth)
		if err != nil {
			return wrapDeviceErr(err)
		}
		dr.img3 = im
	}
	img.coh.setPresent(key, true)
	img.coh.setUpToDate(key, false)
	return nil
}

// pickSource chooses which up-to-date representation to transfer from
// when materializing target, in the preference order documented in
// SPEC_FULL.md §4.4: a same-device sibling representation first (the
// only case that does not route through the tracked host
// representation), then the host, then whatever else is up to date.
func (img *Image) pickSource(target reprKey) (reprKey, bool) {
	if target.kind != kindHost {
		if sib, ok := img.siblingKey(target); ok && img.coh.isUpToDate(sib) {
			return sib, true
		}
		host := reprKey{kind: kindHost}
		if img.coh.isUpToDate(host) {
			return host, true
		}
	}
	return img.coh.anyUpToDate()
}

// siblingKey returns the other device-native representation key that
// shares target's device, if any exists given the image's
// dimensionality (a buffer's sibling is the 2D or 3D image on the same
// device, according to img.dims; an image's sibling is the buffer on
// the same device).
func (img *Image) siblingKey(target reprKey) (reprKey, bool) {
	switch target.kind {
	case kindDeviceBuffer:
		if img.dims == 2 {
			return reprKey{kind: kindDeviceImage2D, dev: target.dev}, true
		}
		return reprKey{kind: kindDeviceImage3D, dev: target.dev}, true
	case kindDeviceImage2D, kindDeviceImage3D:
		return reprKey{kind: kindDeviceBuffer, dev: target.dev}, true
	default:
		return reprKey{}, false
	}
}
