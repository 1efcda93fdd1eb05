package util

import (
	"fmt"
	"sync/atomic"

	"github.com/petermattis/goid"
)

var gCheckOwner atomic.Bool

// EnableOwnerCheck turns OwnerCheck on or off process wide.
func EnableOwnerCheck(enable bool) {
	gCheckOwner.Store(enable)
}

// OwnerCheck binds an object to the first goroutine that touches it.
type OwnerCheck struct {
	owner atomic.Int64
}

// Check panics when the caller is not the owning goroutine.
func (oc *OwnerCheck) Check(what fmt.Stringer) {
	if !gCheckOwner.Load() {
		return
	}
	rid := goid.Get()
	if oc.owner.CompareAndSwap(0, rid) {
		return
	}
	if owner := oc.owner.Load(); owner != rid {
		panic(fmt.Sprintf("%s is owned by goroutine %d, used by goroutine %d", what, owner, rid))
	}
}
