//go:build linux

package serial

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// baudRates maps supported line speeds to their termios constants.
var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// OpenDevice opens a tty in raw 8N1 mode at the given baud rate, with
// no parity and no flow control. The returned stream is ready to wrap
// in a StreamPort for receiving or to write frames to directly.
func OpenDevice(path string, baud int) (io.ReadWriteCloser, error) {
	speed, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("serial: unsupported baud rate %d", baud)
	}

	// O_NONBLOCK keeps the open from stalling on modem control lines
	// and leaves the descriptor with the runtime poller, so Close
	// interrupts a pending Read.
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}

	raw, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}
	var cfgErr error
	if err := raw.Control(func(fd uintptr) {
		cfgErr = configureLine(int(fd), speed)
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("serial: configure %s: %w", path, err)
	}
	if cfgErr != nil {
		f.Close()
		return nil, fmt.Errorf("serial: configure %s: %w", path, cfgErr)
	}
	return f, nil
}

// configureLine puts the tty into raw 8N1 mode at the given speed.
func configureLine(fd int, speed uint32) error {
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("read line settings: %w", err)
	}

	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	tio.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	tio.Ispeed = speed
	tio.Ospeed = speed
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return fmt.Errorf("apply line settings: %w", err)
	}
	return nil
}
