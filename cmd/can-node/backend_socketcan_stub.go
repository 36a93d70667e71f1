//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/uavcan-go/canard/can"
)

func initSocketCANBackend(_ context.Context, _ *appConfig, _ chan<- can.Frame, _ func() can.Micros, _ *slog.Logger, _ *sync.WaitGroup) (sendFunc, func(), error) {
	return nil, func() {}, errors.New("socketcan backend requires linux")
}
