/*
 * This file is part of ldm, an LDM database reader/patcher.
 * Copyright (C) 2025 The ldm authors.
 *
 * ldm is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * ldm is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with ldm.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package device implements the SectorDevice contract: sector-addressed
// read/write access to a block device or image file.
package device

import (
	"fmt"
	"io"
	"os"

	"github.com/flatcap/ldm/internal/errs"
)

// SectorSize is the fixed LDM sector size. The core refuses to operate on
// any device that reports a different size.
const SectorSize = 512

// Device is a sector-addressed view over a regular file or block device.
type Device struct {
	f        *os.File
	readOnly bool
	pos      int64 // absolute sector
	size     int64 // total sectors
}

// Open opens path for sector I/O. readOnly controls whether Write/WriteAt
// are permitted.
func Open(path string, readOnly bool) (*Device, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "Open", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IoError, "Open", err)
	}

	d := &Device{
		f:        f,
		readOnly: readOnly,
		size:     info.Size() / SectorSize,
	}
	return d, nil
}

// OpenOrCreate opens path for read-write sector I/O, creating it if it does
// not already exist. A newly created file reports Size() == 0, matching the
// original tool's treatment of a missing destination as a fresh append
// target rather than an in-place overwrite target.
func OpenOrCreate(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "OpenOrCreate", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IoError, "OpenOrCreate", err)
	}

	d := &Device{
		f:    f,
		size: info.Size() / SectorSize,
	}
	return d, nil
}

// Close releases the underlying file handle.
func (d *Device) Close() error {
	return d.f.Close()
}

// Size returns the total number of sectors on the device, as measured when
// it was opened; writes that extend the file do not change it.
func (d *Device) Size() int64 {
	return d.size
}

// SectorSize returns the fixed sector size, always 512.
func (d *Device) SectorSize() int {
	return SectorSize
}

// SetPos positions the device cursor at the given absolute sector.
func (d *Device) SetPos(sector int64) error {
	if sector < 0 || sector > d.size {
		return errs.New(errs.IoError, fmt.Sprintf("SetPos: sector %d out of range [0,%d]", sector, d.size))
	}
	off, err := d.f.Seek(sector*SectorSize, io.SeekStart)
	if err != nil {
		return errs.Wrap(errs.IoError, "SetPos", err)
	}
	d.pos = off / SectorSize
	return nil
}

// Read reads nsect sectors from the current cursor position into buf,
// advancing the cursor. Partial reads are retried until buf is full; EOF
// before completion is an IoError.
func (d *Device) Read(buf []byte, nsect int) error {
	return d.readFull(buf, nsect)
}

// ReadAt seeks to sector, then reads nsect sectors into buf.
func (d *Device) ReadAt(buf []byte, nsect int, sector int64) error {
	if err := d.SetPos(sector); err != nil {
		return err
	}
	return d.readFull(buf, nsect)
}

func (d *Device) readFull(buf []byte, nsect int) error {
	want := nsect * SectorSize
	if len(buf) < want {
		return errs.New(errs.IoError, fmt.Sprintf("Read: buffer too small: have %d, need %d", len(buf), want))
	}
	n, err := io.ReadFull(d.f, buf[:want])
	d.pos += int64(n) / SectorSize
	if err != nil {
		return errs.Wrap(errs.IoError, "Read", err)
	}
	return nil
}

// Write writes nsect sectors from buf at the current cursor position,
// advancing the cursor. Partial writes are retried until buf is fully
// written.
func (d *Device) Write(buf []byte, nsect int) error {
	return d.writeFull(buf, nsect)
}

// WriteAt seeks to sector, then writes nsect sectors from buf.
func (d *Device) WriteAt(buf []byte, nsect int, sector int64) error {
	if err := d.SetPos(sector); err != nil {
		return err
	}
	return d.writeFull(buf, nsect)
}

func (d *Device) writeFull(buf []byte, nsect int) error {
	if d.readOnly {
		return errs.New(errs.IoError, "Write: device opened read-only")
	}
	want := nsect * SectorSize
	if len(buf) < want {
		return errs.New(errs.IoError, fmt.Sprintf("Write: buffer too small: have %d, need %d", len(buf), want))
	}
	left := buf[:want]
	for len(left) > 0 {
		n, err := d.f.Write(left)
		if err != nil {
			return errs.Wrap(errs.IoError, "Write", err)
		}
		left = left[n:]
		d.pos += int64(n) / SectorSize
	}
	return nil
}
