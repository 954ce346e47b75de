//go:build windows

// Package stderr has nothing to capture on Windows: the audio backend
// reports through return values rather than fd 2.
package stderr

import (
	"io"
	"os"
)

// Messages stays silent on Windows.
var Messages = make(chan string)

func Start() error { return nil }

func Stop() {}

// Original is os.Stderr itself.
func Original() io.Writer { return os.Stderr }

func WriteOriginal(msg string) {
	_, _ = io.WriteString(os.Stderr, msg)
}
