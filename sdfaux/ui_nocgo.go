//go:build tinygo || !cgo

package sdfaux

import (
	"errors"

	"github.com/soypat/sdftrace"
)

func ui(scene *sdftrace.Scene, cfg UIConfig) error {
	return errors.New("require cgo for UI rendering")
}
