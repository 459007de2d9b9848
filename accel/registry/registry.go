// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package registry provides a conventional place for an out-of-process
// device manager to advertise the accel.Device values it has enumerated.
//
// The voxel package never calls into this package itself: per the
// specification's design note on the device-manager singleton, device
// handles are always passed to voxel explicitly by the caller. This
// package exists for applications that wire up more than one
// accelerator backend (several accel/memdev instances during
// development, or a real OpenCL/CUDA/Metal backend in production) and
// want one conventional place to enumerate them, in the manner of
// driver.Register/driver.Drivers in the teacher pack.
package registry

import (
	"log"
	"sync"

	"github.com/medvolume/voxcore/accel"
)

var (
	mu      sync.Mutex
	devices = make(map[string]accel.Device)
)

// Register registers dev under name.
// If a device with the same name has already been registered, it is
// replaced.
func Register(name string, dev accel.Device) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := devices[name]; ok {
		log.Printf("[!] accel device '%s' replaced", name)
	} else {
		log.Printf("accel device '%s' registered", name)
	}
	devices[name] = dev
}

// Unregister removes the device registered under name, if any.
func Unregister(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(devices, name)
}

// Lookup returns the device registered under name, and whether one was
// found.
func Lookup(name string) (accel.Device, bool) {
	mu.Lock()
	defer mu.Unlock()
	dev, ok := devices[name]
	return dev, ok
}

// Registered returns every currently registered device name, in no
// particular order.
func Registered() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	return names
}
