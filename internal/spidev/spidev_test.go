// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spidev

import (
	"path/filepath"
	"testing"
	"unsafe"
)

func TestIoctlNumbers(t *testing.T) {
	for _, tc := range []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"SPI_IOC_WR_MODE", iocWrMode, 0x40016b01},
		{"SPI_IOC_RD_MODE", iocRdMode, 0x80016b01},
		{"SPI_IOC_WR_BITS_PER_WORD", iocWrBitsPerWord, 0x40016b03},
		{"SPI_IOC_RD_BITS_PER_WORD", iocRdBitsPerWord, 0x80016b03},
		{"SPI_IOC_WR_MAX_SPEED_HZ", iocWrMaxSpeedHz, 0x40046b04},
		{"SPI_IOC_RD_MAX_SPEED_HZ", iocRdMaxSpeedHz, 0x80046b04},
		{"SPI_IOC_MESSAGE(1)", iocMessage1, 0x40206b00},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("invalid ioctl number: got=0x%x, want=0x%x", tc.got, tc.want)
			}
		})
	}

	if got, want := unsafe.Sizeof(transfer{}), uintptr(32); got != want {
		t.Fatalf("invalid spi_ioc_transfer size: got=%d, want=%d", got, want)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "spidev9.9"), Config{Mode: Mode3, Bits: 8, Speed: 500000})
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestClosedDevice(t *testing.T) {
	dev := &Device{fd: -1}
	_, err := dev.Transfer([]byte{1})
	if err != errClosed {
		t.Fatalf("invalid error: got=%v, want=%v", err, errClosed)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("could not close closed device: %+v", err)
	}

	var nilDev *Device
	if _, err := nilDev.Transfer(nil); err != errClosed {
		t.Fatalf("invalid error: got=%v, want=%v", err, errClosed)
	}
}

func TestTransferTooLong(t *testing.T) {
	dev := &Device{fd: 1000}
	_, err := dev.Transfer(make([]byte, MaxTransfer+1))
	if err != errTransferLength {
		t.Fatalf("invalid error: got=%v, want=%v", err, errTransferLength)
	}
}
