//go:build !windows

// Package stderr captures output that C libraries (ALSA, the speaker
// backend) write straight to file descriptor 2, bypassing os.Stderr, so it
// can be routed through the logger instead of interleaving with the
// command prompt.
package stderr

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Messages receives stderr lines captured from C libraries.
var Messages = make(chan string, 100)

var (
	mu         sync.Mutex
	origStderr = -1
	pipeRead   *os.File
	pipeWrite  *os.File
	original   *os.File
	started    bool
)

// Start begins capturing stderr output.
// Must be called early in main(), before any C library initialization.
// The program can continue if it fails; output then goes to the real
// stderr as before.
func Start() error {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return err
	}

	// Save original stderr file descriptor
	fd, err := unix.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return err
	}

	// Redirect stderr (fd 2) to the pipe's write end
	if err := unix.Dup2(int(w.Fd()), int(os.Stderr.Fd())); err != nil {
		_ = unix.Close(fd)
		r.Close()
		w.Close()
		return err
	}

	origStderr = fd
	original = os.NewFile(uintptr(fd), "stderr")
	pipeRead = r
	pipeWrite = w
	started = true

	go forward(r)
	return nil
}

func forward(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case Messages <- line:
		default:
			// Channel full, drop message to avoid blocking
		}
	}
}

// Original returns a writer to the real stderr, bypassing capture.
func Original() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	if original != nil {
		return original
	}
	return os.Stderr
}

// WriteOriginal writes directly to the original stderr, bypassing capture.
func WriteOriginal(msg string) {
	_, _ = io.WriteString(Original(), msg)
}

// Stop restores the original stderr. Should be called on program exit.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if !started {
		return
	}

	_ = unix.Dup2(origStderr, int(os.Stderr.Fd()))
	original.Close()
	original = nil
	origStderr = -1

	pipeWrite.Close()
	pipeRead.Close()

	close(Messages)
	started = false
}
