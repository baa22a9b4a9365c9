package sdftrace

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

const (
	// epstol is used to check for badly conditioned denominators
	// such as lengths used for normalization.
	epstol  = 6e-7
	deg2rad = math32.Pi / 180
)

// Flags modifies the behaviour of a [Builder].
type Flags uint32

const (
	// FlagNoDimensionPanic makes the Builder accumulate invalid dimension errors
	// instead of panicking. Accumulated errors are returned by [Builder.Err].
	FlagNoDimensionPanic Flags = 1 << iota
)

// Builder wraps all primitive, scene and camera construction logic.
// Provides error handling strategies with panics or error accumulation during scene generation.
// The zero value is ready to use and panics on invalid dimensions.
type Builder struct {
	flags     Flags
	accumErrs []error
}

// SetFlags sets the Builder's flags, replacing previous ones.
func (bld *Builder) SetFlags(flags Flags) {
	bld.flags = flags
}

// Flags returns the flags currently in use.
func (bld *Builder) Flags() Flags { return bld.flags }

// Err returns all accumulated construction errors joined together, or nil if there were none.
func (bld *Builder) Err() error {
	if len(bld.accumErrs) == 0 {
		return nil
	}
	return errors.Join(bld.accumErrs...)
}

// ClearErrors discards all accumulated errors.
func (bld *Builder) ClearErrors() {
	bld.accumErrs = bld.accumErrs[:0]
}

func (bld *Builder) shapeErrorf(msg string, args ...any) {
	if bld.flags&FlagNoDimensionPanic == 0 {
		panic(fmt.Sprintf(msg, args...))
	}
	bld.accumErrs = append(bld.accumErrs, fmt.Errorf(msg, args...))
}

func minf(a, b float32) float32 {
	return math32.Min(a, b)
}

func maxf(a, b float32) float32 {
	return math32.Max(a, b)
}

func absf(a float32) float32 {
	return math32.Abs(a)
}

func isFinite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
