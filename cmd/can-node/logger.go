package main

import (
	"log/slog"
	"os"

	"github.com/uavcan-go/canard/internal/logging"
)

func setupLogger(format, level string) *slog.Logger {
	l := logging.New(format, logging.ParseLevel(level), os.Stderr).With("app", "can-node")
	logging.Set(l)
	return l
}
