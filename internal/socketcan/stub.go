//go:build !linux

package socketcan

import (
	"errors"

	"github.com/uavcan-go/canard/can"
)

// Device is a stub so node code compiles on non-linux hosts.
type Device struct{}

var errUnsupported = errors.New("socketcan: only supported on linux")

func Open(string) (*Device, error) { return nil, errUnsupported }

func (*Device) Close() error { return errUnsupported }

func (*Device) ReadFrame(*can.Frame) error { return errUnsupported }

func (*Device) WriteFrame(can.Frame) error { return errUnsupported }
