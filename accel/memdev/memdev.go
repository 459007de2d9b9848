// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package memdev provides an in-memory accel.Device implementation.
//
// It performs real byte-level data movement against plain Go byte
// slices, so the voxel package's coherence and round-trip tests
// exercise genuine transfer code paths without depending on OpenCL,
// CUDA or Metal hardware being present. It is grounded on the "noop"
// HAL backend pattern (a minimal backend that satisfies the full
// interface with real, if trivial, data movement) found in the
// retrieved graphics corpus; it is a reference/test fixture, not a
// production accelerator backend.
package memdev

import (
	"errors"
	"fmt"
	"sync"

	"github.com/medvolume/voxcore/accel"
)

const prefix = "memdev: "

// Device is an in-memory accel.Device.
// The zero value is not usable; construct one with New.
type Device struct {
	name string

	mu       sync.Mutex
	failures int
}

// New creates a named in-memory device.
func New(name string) *Device {
	return &Device{name: name}
}

// Name returns d's name.
func (d *Device) Name() string { return d.name }

// FailNext arranges for the next n calls to any Device method that can
// fail (every New*/Copy* method) to return accel.ErrFatal instead of
// performing the operation. It is a test hook only; production
// accelerator backends have no equivalent.
func (d *Device) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

// consumeFailure reports whether the current call should be made to
// fail, decrementing the remaining failure count if so.
func (d *Device) consumeFailure() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures <= 0 {
		return false
	}
	d.failures--
	return true
}

// buffer is the concrete accel.Buffer backing this device.
type buffer struct {
	dev  *Device
	data []byte
}

func (b *buffer) Destroy()      { b.data = nil }
func (b *buffer) Len() int      { return len(b.data) }
func (b *buffer) Bytes() []byte { return b.data }

// image2D is the concrete accel.Image2D backing this device.
type image2D struct {
	dev                     *Device
	width, height, channels int
	elemSize                int
	data                    []byte
}

func (i *image2D) Destroy()      { i.data = nil }
func (i *image2D) Width() int    { return i.width }
func (i *image2D) Height() int   { return i.height }
func (i *image2D) Channels() int { return i.channels }

// image3D is the concrete accel.Image3D backing this device.
type image3D struct {
	dev                            *Device
	width, height, depth, channels int
	elemSize                       int
	data                           []byte
}

func (i *image3D) Destroy()      { i.data = nil }
func (i *image3D) Width() int    { return i.width }
func (i *image3D) Height() int   { return i.height }
func (i *image3D) Depth() int    { return i.depth }
func (i *image3D) Channels() int { return i.channels }

// NewBuffer allocates a zero-filled in-memory buffer.
func (d *Device) NewBuffer(dt accel.DataType, scalarCount int) (accel.Buffer, error) {
	if d.consumeFailure() {
		return nil, d.fatal("NewBuffer")
	}
	if scalarCount < 1 {
		return nil, errors.New(prefix + "scalarCount must be positive")
	}
	return &buffer{dev: d, data: make([]byte, scalarCount*dt.Size())}, nil
}

// NewImage2D allocates a zero-filled in-memory 2D image.
func (d *Device) NewImage2D(dt accel.DataType, channels, width, height int) (accel.Image2D, error) {
	if d.consumeFailure() {
		return nil, d.fatal("NewImage2D")
	}
	if width < 1 || height < 1 || channels < 1 {
		return nil, errors.New(prefix + "invalid image2D parameters")
	}
	n := width * height * channels * dt.Size()
	return &image2D{dev: d, width: width, height: height, channels: channels, elemSize: dt.Size(), data: make([]byte, n)}, nil
}

// NewImage3D allocates a zero-filled in-memory 3D image.
func (d *Device) NewImage3D(dt accel.DataType, channels, width, height, depth int) (accel.Image3D, error) {
	if d.consumeFailure() {
		return nil, d.fatal("NewImage3D")
	}
	if width < 1 || height < 1 || depth < 1 || channels < 1 {
		return nil, errors.New(prefix + "invalid image3D parameters")
	}
	n := width * height * depth * channels * dt.Size()
	return &image3D{dev: d, width: width, height: height, depth: depth, channels: channels, elemSize: dt.Size(), data: make([]byte, n)}, nil
}

func (d *Device) fatal(op string) error {
	return fmt.Errorf("%s%s: %w", prefix, op, accel.ErrFatal)
}

func asBuffer(dev *Device, b accel.Buffer) (*buffer, error) {
	bb, ok := b.(*buffer)
	if !ok || bb.dev != dev {
		return nil, errors.New(prefix + "buffer does not belong to this device")
	}
	return bb, nil
}

func asImage2D(dev *Device, i accel.Image2D) (*image2D, error) {
	ii, ok := i.(*image2D)
	if !ok || ii.dev != dev {
		return nil, errors.New(prefix + "image2D does not belong to this device")
	}
	return ii, nil
}

func asImage3D(dev *Device, i accel.Image3D) (*image3D, error) {
	ii, ok := i.(*image3D)
	if !ok || ii.dev != dev {
		return nil, errors.New(prefix + "image3D does not belong to this device")
	}
	return ii, nil
}

// CopyHostToBuffer copies src into dst.
func (d *Device) CopyHostToBuffer(dst accel.Buffer, src []byte) error {
	if d.consumeFailure() {
		return d.fatal("CopyHostToBuffer")
	}
	b, err := asBuffer(d, dst)
	if err != nil {
		return err
	}
	if len(src) > len(b.data) {
		return errors.New(prefix + "source larger than destination buffer")
	}
	copy(b.data, src)
	return nil
}

// CopyBufferToHost copies src into dst.
func (d *Device) CopyBufferToHost(dst []byte, src accel.Buffer) error {
	if d.consumeFailure() {
		return d.fatal("CopyBufferToHost")
	}
	b, err := asBuffer(d, src)
	if err != nil {
		return err
	}
	if len(dst) > len(b.data) {
		return errors.New(prefix + "destination larger than source buffer")
	}
	copy(dst, b.data)
	return nil
}

// CopyBufferToImage2D copies src's bytes into dst, verbatim.
func (d *Device) CopyBufferToImage2D(dst accel.Image2D, src accel.Buffer) error {
	if d.consumeFailure() {
		return d.fatal("CopyBufferToImage2D")
	}
	im, err := asImage2D(d, dst)
	if err != nil {
		return err
	}
	b, err := asBuffer(d, src)
	if err != nil {
		return err
	}
	if len(b.data) != len(im.data) {
		return errors.New(prefix + "buffer/image2D size mismatch")
	}
	copy(im.data, b.data)
	return nil
}

// CopyImage2DToBuffer copies src's bytes into dst, verbatim.
func (d *Device) CopyImage2DToBuffer(dst accel.Buffer, src accel.Image2D) error {
	if d.consumeFailure() {
		return d.fatal("CopyImage2DToBuffer")
	}
	im, err := asImage2D(d, src)
	if err != nil {
		return err
	}
	b, err := asBuffer(d, dst)
	if err != nil {
		return err
	}
	if len(b.data) != len(im.data) {
		return errors.New(prefix + "buffer/image2D size mismatch")
	}
	copy(b.data, im.data)
	return nil
}

// CopyBufferToImage3D copies src's bytes into dst, verbatim.
func (d *Device) CopyBufferToImage3D(dst accel.Image3D, src accel.Buffer) error {
	if d.consumeFailure() {
		return d.fatal("CopyBufferToImage3D")
	}
	im, err := asImage3D(d, dst)
	if err != nil {
		return err
	}
	b, err := asBuffer(d, src)
	if err != nil {
		return err
	}
	if len(b.data) != len(im.data) {
		return errors.New(prefix + "buffer/image3D size mismatch")
	}
	copy(im.data, b.data)
	return nil
}

// CopyImage3DToBuffer copies src's bytes into dst, verbatim.
func (d *Device) CopyImage3DToBuffer(dst accel.Buffer, src accel.Image3D) error {
	if d.consumeFailure() {
		return d.fatal("CopyImage3DToBuffer")
	}
	im, err := asImage3D(d, src)
	if err != nil {
		return err
	}
	b, err := asBuffer(d, dst)
	if err != nil {
		return err
	}
	if len(b.data) != len(im.data) {
		return errors.New(prefix + "buffer/image3D size mismatch")
	}
	copy(b.data, im.data)
	return nil
}

var _ accel.Device = (*Device)(nil)
