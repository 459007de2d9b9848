// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package voxel

// coherence tracks the present/up_to_date flag pair the specification
// assigns to every representation of an image (§3, invariant I1).
// Absent keys are implicitly present=false, up_to_date=false.
type coherence struct {
	flags map[reprKey]*reprFlags
}

func newCoherence() coherence {
	return coherence{flags: make(map[reprKey]*reprFlags)}
}

func (c *coherence) entry(k reprKey) *reprFlags {
	f, ok := c.flags[k]
	if !ok {
		f = &reprFlags{}
		c.flags[k] = f
	}
	return f
}

func (c *coherence) isPresent(k reprKey) bool {
	f, ok := c.flags[k]
	return ok && f.present
}

func (c *coherence) isUpToDate(k reprKey) bool {
	f, ok := c.flags[k]
	return ok && f.present && f.upToDate
}

func (c *coherence) setPresent(k reprKey, present bool) {
	c.entry(k).present = present
}

func (c *coherence) setUpToDate(k reprKey, upToDate bool) {
	c.entry(k).upToDate = upToDate
}

// anyUpToDate returns an arbitrary up-to-date representation, if any
// exists. Map iteration order is unspecified, which matches the
// specification: any up-to-date source is a valid source when no
// preferred one (same-device sibling, host) is available.
func (c *coherence) anyUpToDate() (reprKey, bool) {
	for k, f := range c.flags {
		if f.present && f.upToDate {
			return k, true
		}
	}
	return reprKey{}, false
}

// invalidateOthersExcept clears up_to_date on every present
// representation other than except. Used by ReadWrite materialization
// (invariant I4: a write leaves K as the sole authority).
func (c *coherence) invalidateOthersExcept(except reprKey) {
	for k, f := range c.flags {
		if k != except && f.present {
			f.upToDate = false
		}
	}
}
