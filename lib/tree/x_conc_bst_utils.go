package tree

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/benz9527/xtree/lib/infra"
)

const cacheLinePadSize = unsafe.Sizeof(cpu.CacheLinePad{})

// casBackoff spreads CAS retry storms: a few doubling rounds of on-core
// spinning, then yield to the Go scheduler. The first attempt pays
// nothing, backoff is a liveness aid only, never needed for correctness.
type casBackoff struct {
	spins uint8
}

func (b *casBackoff) once() {
	if b.spins == 0 {
		b.spins = 1
		return
	}
	if b.spins <= 32 {
		for i := uint8(0); i < b.spins; i++ {
			infra.ProcYield(20)
		}
		b.spins <<= 1
		return
	}
	runtime.Gosched()
}
