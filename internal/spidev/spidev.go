// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spidev gives access to Linux spidev devices.
package spidev // import "github.com/go-lpc/ctlab/internal/spidev"

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MaxTransfer is the maximum number of bytes of a single transfer.
const MaxTransfer = 32

// SPI clock polarity and phase.
const (
	cpha  = 0x01
	cpol  = 0x02
	Mode0 = 0
	Mode3 = cpha | cpol
)

const (
	iocWrite = 1
	iocRead  = 2
	iocMagic = 'k'
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | iocMagic<<8 | nr
}

var (
	iocWrMode         = ioc(iocWrite, 1, 1)
	iocRdMode         = ioc(iocRead, 1, 1)
	iocWrBitsPerWord  = ioc(iocWrite, 3, 1)
	iocRdBitsPerWord  = ioc(iocRead, 3, 1)
	iocWrMaxSpeedHz   = ioc(iocWrite, 4, 4)
	iocRdMaxSpeedHz   = ioc(iocRead, 4, 4)
	iocMessage1       = ioc(iocWrite, 0, unsafe.Sizeof(transfer{}))
	errClosed         = errors.New("spidev: closed")
	errTransferLength = fmt.Errorf("spidev: transfer longer than %d bytes", MaxTransfer)
)

// transfer mirrors struct spi_ioc_transfer.
type transfer struct {
	txBuf       uint64
	rxBuf       uint64
	len         uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	_           uint8
}

// Config configures an spidev device.
type Config struct {
	Mode  uint8  // SPI mode (clock polarity and phase)
	Bits  uint8  // bits per word
	Speed uint32 // maximum clock frequency, in Hz
}

// Device is an open spidev device.
type Device struct {
	fd  int
	cfg Config
}

// Open opens the named spidev device and configures it.
func Open(name string, cfg Config) (*Device, error) {
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("spidev: could not open %q: %w", name, err)
	}
	dev := &Device{fd: fd, cfg: cfg}

	for _, op := range []struct {
		name string
		req  uintptr
		arg  unsafe.Pointer
	}{
		{"set mode", iocWrMode, unsafe.Pointer(&dev.cfg.Mode)},
		{"get mode", iocRdMode, unsafe.Pointer(&dev.cfg.Mode)},
		{"set bits per word", iocWrBitsPerWord, unsafe.Pointer(&dev.cfg.Bits)},
		{"get bits per word", iocRdBitsPerWord, unsafe.Pointer(&dev.cfg.Bits)},
		{"set max speed", iocWrMaxSpeedHz, unsafe.Pointer(&dev.cfg.Speed)},
		{"get max speed", iocRdMaxSpeedHz, unsafe.Pointer(&dev.cfg.Speed)},
	} {
		err = dev.ioctl(op.req, op.arg)
		if err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("spidev: could not %s of %q: %w", op.name, name, err)
		}
	}

	runtime.SetFinalizer(dev, (*Device).Close)
	return dev, nil
}

// Config returns the configuration read back from the device.
func (dev *Device) Config() Config { return dev.cfg }

// Transfer exchanges tx with the device and returns the received bytes.
func (dev *Device) Transfer(tx []byte) ([]byte, error) {
	if dev == nil || dev.fd < 0 {
		return nil, errClosed
	}
	if len(tx) > MaxTransfer {
		return nil, errTransferLength
	}
	if len(tx) == 0 {
		return nil, nil
	}

	rx := make([]byte, len(tx))
	tr := transfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		len:         uint32(len(tx)),
		speedHz:     dev.cfg.Speed,
		bitsPerWord: dev.cfg.Bits,
	}
	err := dev.ioctl(iocMessage1, unsafe.Pointer(&tr))
	runtime.KeepAlive(tx)
	runtime.KeepAlive(rx)
	if err != nil {
		return nil, fmt.Errorf("spidev: could not transfer %d bytes: %w", len(tx), err)
	}
	return rx, nil
}

// Close closes the device.
func (dev *Device) Close() error {
	if dev == nil {
		return os.ErrInvalid
	}
	if dev.fd < 0 {
		return nil
	}
	fd := dev.fd
	dev.fd = -1
	runtime.SetFinalizer(dev, nil)
	return unix.Close(fd)
}

func (dev *Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(dev.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
