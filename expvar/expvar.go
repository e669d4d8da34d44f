// Package expvar provides atomic counters that satisfy the standard
// expvar.Var interface and can also be read back as raw typed values.
package expvar

import (
	"strconv"
	"sync/atomic"
)

// Int is a 64-bit integer variable that satisfies the expvar.Var interface.
type Int struct {
	i int64
}

func (v *Int) String() string {
	return strconv.FormatInt(v.IntValue(), 10)
}

func (v *Int) Add(delta int64) {
	atomic.AddInt64(&v.i, delta)
}

func (v *Int) IntValue() int64 {
	return atomic.LoadInt64(&v.i)
}

// Max is a 64-bit integer high-water mark.
// Setting a value only succeeds if it is greater than the current value.
type Max struct {
	i int64
}

func (v *Max) String() string {
	return strconv.FormatInt(v.IntValue(), 10)
}

func (v *Max) IntValue() int64 {
	return atomic.LoadInt64(&v.i)
}

// Set stores next if it is greater than the current value.
func (v *Max) Set(next int64) {
	for {
		cur := v.IntValue()
		if next <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&v.i, cur, next) {
			return
		}
	}
}
