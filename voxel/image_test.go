// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package voxel

import (
	"errors"
	"strings"
	"testing"

	"github.com/medvolume/voxcore/accel"
	"github.com/medvolume/voxcore/accel/memdev"
	"github.com/medvolume/voxcore/voxel/voxeltest"
)

// check performs a handful of structural sanity checks on img,
// common to every test case below.
func (img *Image) check(t *testing.T) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if !img.initialized {
		t.Fatal("Image: expected initialized image")
	}
	if img.dims != 2 && img.dims != 3 {
		t.Fatalf("Image.dims: unexpected value %d", img.dims)
	}
	if _, ok := img.coh.anyUpToDate(); !ok {
		t.Fatal("Image: expected at least one up-to-date representation (invariant I2)")
	}
}

func TestCreate2DHost(t *testing.T) {
	data := voxeltest.Pattern(accel.U8, 4*4*1, 1)
	img := New()
	if err := img.Create2D(4, 4, accel.U8, 1, nil, data); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}
	img.check(t)

	if err := img.Create2D(4, 4, accel.U8, 1, nil, nil); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("Create2D: have %v, want ErrAlreadyInitialized", err)
	}

	tok, err := img.HostAccess(Read)
	if err != nil {
		t.Fatalf("HostAccess: unexpected error: %v", err)
	}
	defer tok.Release()
	b := tok.Bytes()
	for i := range data {
		if b[i] != data[i] {
			t.Fatalf("HostAccess.Bytes: mismatch at %d: have %d, want %d", i, b[i], data[i])
		}
	}
}

func TestCreate2DInvalidArgs(t *testing.T) {
	img := New()
	if err := img.Create2D(0, 4, accel.U8, 1, nil, nil); !strings.HasPrefix(err.Error(), errInvalidArgumentPrefix) {
		t.Fatalf("Create2D: have %v, want invalid-argument error", err)
	}
	img2 := New()
	if err := img2.Create2D(4, 4, accel.U8, 5, nil, nil); !strings.HasPrefix(err.Error(), errInvalidArgumentPrefix) {
		t.Fatalf("Create2D: have %v, want invalid-argument error", err)
	}
	img3 := New()
	short := make([]byte, 2)
	if err := img3.Create2D(4, 4, accel.U8, 1, nil, short); !strings.HasPrefix(err.Error(), errInvalidArgumentPrefix) {
		t.Fatalf("Create2D: have %v, want invalid-argument error", err)
	}
}

func TestUninitializedAccess(t *testing.T) {
	img := New()
	if _, err := img.HostAccess(Read); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("HostAccess: have %v, want ErrUninitialized", err)
	}
}

func TestDimensionMismatch(t *testing.T) {
	dev := memdev.New("gpu")
	img := New()
	if err := img.Create2D(4, 4, accel.F32, 1, nil, nil); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}
	if _, err := img.DeviceImage3DAccess(Read, dev); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("DeviceImage3DAccess: have %v, want ErrDimensionMismatch", err)
	}
}

func TestHostToDeviceBufferMaterialization(t *testing.T) {
	dev := memdev.New("gpu")
	data := voxeltest.Pattern(accel.F32, 8*8, 7)
	img := New()
	if err := img.Create2D(8, 8, accel.F32, 1, nil, data); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}

	tok, err := img.DeviceBufferAccess(Read, dev)
	if err != nil {
		t.Fatalf("DeviceBufferAccess: unexpected error: %v", err)
	}
	got := make([]byte, len(data))
	if err := dev.CopyBufferToHost(got, tok.Buffer()); err != nil {
		t.Fatalf("CopyBufferToHost: unexpected error: %v", err)
	}
	tok.Release()
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("mismatch at %d: have %d, want %d", i, got[i], data[i])
		}
	}
}

// TestThreeChannelPadding exercises the channel padding rule of §4.5:
// a 3-component image allocates 4-channel device images, and a round
// trip through a device image must not leak the padding channel back
// into the tightly-packed host/buffer representations.
func TestThreeChannelPadding(t *testing.T) {
	dev := memdev.New("gpu")
	const w, h = 3, 2
	data := voxeltest.Pattern(accel.U8, w*h*3, 11)
	img := New()
	if err := img.Create2D(w, h, accel.U8, 3, nil, data); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}

	// ReadWrite makes the device image the sole up-to-date
	// representation, so the host access below has to be rebuilt from it.
	imgTok, err := img.DeviceImage2DAccess(ReadWrite, dev)
	if err != nil {
		t.Fatalf("DeviceImage2DAccess: unexpected error: %v", err)
	}
	if c := imgTok.Image().Channels(); c != 4 {
		t.Fatalf("DeviceImage2D.Channels: have %d, want 4", c)
	}
	imgTok.Release()

	// The host representation, re-materialized from the padded
	// DeviceImage2D, must show the original, unpadded 3-channel data.
	hostTok, err := img.HostAccess(Read)
	if err != nil {
		t.Fatalf("HostAccess: unexpected error: %v", err)
	}
	defer hostTok.Release()
	got := hostTok.Bytes()
	if len(got) != len(data) {
		t.Fatalf("host representation length: have %d, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("mismatch at %d: have %d, want %d", i, got[i], data[i])
		}
	}
}

// TestWriteInvalidatesOthers exercises invariant I4: releasing a
// ReadWrite access leaves the written representation as the sole
// up-to-date one.
func TestWriteInvalidatesOthers(t *testing.T) {
	dev := memdev.New("gpu")
	img := New()
	if err := img.Create2D(4, 4, accel.U16, 2, nil, nil); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}

	// Bring the device buffer representation up to date too.
	bufTok, err := img.DeviceBufferAccess(Read, dev)
	if err != nil {
		t.Fatalf("DeviceBufferAccess: unexpected error: %v", err)
	}
	bufTok.Release()

	hostTok, err := img.HostAccess(ReadWrite)
	if err != nil {
		t.Fatalf("HostAccess: unexpected error: %v", err)
	}
	newData := voxeltest.Pattern(accel.U16, 4*4*2, 99)
	copy(hostTok.Bytes(), newData)
	hostTok.Release()

	img.mu.Lock()
	bufUpToDate := img.coh.isUpToDate(reprKey{kind: kindDeviceBuffer, dev: dev})
	img.mu.Unlock()
	if bufUpToDate {
		t.Fatal("DeviceBuffer representation should have been invalidated by the host write")
	}

	// Reading it back must re-materialize from the host and reflect
	// the new contents.
	bufTok2, err := img.DeviceBufferAccess(Read, dev)
	if err != nil {
		t.Fatalf("DeviceBufferAccess: unexpected error: %v", err)
	}
	got := make([]byte, len(newData))
	if err := dev.CopyBufferToHost(got, bufTok2.Buffer()); err != nil {
		t.Fatalf("CopyBufferToHost: unexpected error: %v", err)
	}
	bufTok2.Release()
	for i := range newData {
		if got[i] != newData[i] {
			t.Fatalf("mismatch at %d: have %d, want %d", i, got[i], newData[i])
		}
	}
}

func TestAccessConflict(t *testing.T) {
	img := New()
	if err := img.Create2D(4, 4, accel.F32, 1, nil, nil); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}

	w, err := img.HostAccess(ReadWrite)
	if err != nil {
		t.Fatalf("HostAccess: unexpected error: %v", err)
	}
	if _, err := img.HostAccess(Read); !errors.Is(err, ErrAccessConflict) {
		t.Fatalf("HostAccess: have %v, want ErrAccessConflict", err)
	}
	w.Release()

	r1, err := img.HostAccess(Read)
	if err != nil {
		t.Fatalf("HostAccess: unexpected error: %v", err)
	}
	r2, err := img.HostAccess(Read)
	if err != nil {
		t.Fatalf("HostAccess: unexpected concurrent read error: %v", err)
	}
	if _, err := img.HostAccess(ReadWrite); !errors.Is(err, ErrAccessConflict) {
		t.Fatalf("HostAccess: have %v, want ErrAccessConflict", err)
	}
	r1.Release()
	r2.Release()

	w2, err := img.HostAccess(ReadWrite)
	if err != nil {
		t.Fatalf("HostAccess: unexpected error after releasing all reads: %v", err)
	}
	w2.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	img := New()
	if err := img.Create2D(2, 2, accel.F32, 1, nil, nil); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}
	tok, err := img.HostAccess(Read)
	if err != nil {
		t.Fatalf("HostAccess: unexpected error: %v", err)
	}
	tok.Release()
	tok.Release() // must not panic

	defer func() {
		if recover() == nil {
			t.Fatal("Bytes: expected panic after Release")
		}
	}()
	tok.Bytes()
}

// TestMultiDeviceFanOut exercises the cross-device transfer path:
// materializing a representation on device b while the only
// up-to-date representation lives on device a must route through the
// host, never inferring data directly between the two devices.
func TestMultiDeviceFanOut(t *testing.T) {
	a, b := voxeltest.NewDevicePair()
	data := voxeltest.Pattern(accel.I16, 4*4, 5)
	img := New()
	if err := img.Create2D(4, 4, accel.I16, 1, a, data); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}

	tok, err := img.DeviceBufferAccess(Read, b)
	if err != nil {
		t.Fatalf("DeviceBufferAccess(b): unexpected error: %v", err)
	}
	got := make([]byte, len(data))
	if err := b.CopyBufferToHost(got, tok.Buffer()); err != nil {
		t.Fatalf("CopyBufferToHost: unexpected error: %v", err)
	}
	tok.Release()
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("mismatch at %d: have %d, want %d", i, got[i], data[i])
		}
	}

	img.mu.Lock()
	hostUpToDate := img.coh.isUpToDate(reprKey{kind: kindHost})
	img.mu.Unlock()
	if !hostUpToDate {
		t.Fatal("HostBuffer representation should remain present and up to date after the cross-device hop")
	}
}

func TestDeviceFailureWrapped(t *testing.T) {
	dev := memdev.New("flaky")
	img := New()
	if err := img.Create2D(4, 4, accel.F32, 1, nil, nil); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}
	dev.FailNext(1)
	if _, err := img.DeviceBufferAccess(Read, dev); !errors.Is(err, ErrDeviceFailure) {
		t.Fatalf("DeviceBufferAccess: have %v, want wrapped ErrDeviceFailure", err)
	}
}

func TestClose(t *testing.T) {
	dev := memdev.New("gpu")
	img := New()
	if err := img.Create2D(2, 2, accel.F32, 1, nil, nil); err != nil {
		t.Fatalf("Create2D: unexpected error: %v", err)
	}
	tok, err := img.DeviceBufferAccess(Read, dev)
	if err != nil {
		t.Fatalf("DeviceBufferAccess: unexpected error: %v", err)
	}
	if err := img.Close(); !errors.Is(err, ErrAccessConflict) {
		t.Fatalf("Close: have %v, want ErrAccessConflict while a token is outstanding", err)
	}
	tok.Release()
	if err := img.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}
	if _, err := img.HostAccess(Read); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("HostAccess after Close: have %v, want ErrUninitialized", err)
	}
}
