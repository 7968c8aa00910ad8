//go:build !linux

package serial

import (
	"fmt"
	"io"
	"runtime"
)

// OpenDevice is only implemented for Linux ttys. Other platforms can
// still run everything that takes an io.ReadWriteCloser.
func OpenDevice(path string, baud int) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("serial: open %s: tty access not supported on %s", path, runtime.GOOS)
}
