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

// Package copier implements the raw LDM database/partition-table copy used
// by the "c" command: the leading 7 sectors (MBR plus the first PRIVHEAD
// copy) and the trailing 2048-sector LDM database are copied verbatim from
// one device to another, byte for byte, with no parsing of either.
package copier

import (
	"github.com/rs/zerolog/log"

	"github.com/flatcap/ldm/internal/device"
	"github.com/flatcap/ldm/internal/errs"
)

const (
	headSectors = 7
	dbSectors   = 2048
)

// Copy transfers the partition table and LDM database from src to dst: the
// first headSectors sectors, then the last dbSectors sectors. If dst is a
// brand-new (zero-size) device the database is appended; otherwise its own
// trailing dbSectors are overwritten in place. This mirrors the original
// tool's _task_copy exactly, including its lack of any check that src holds
// at least dbSectors sectors - for a source image smaller than that, the
// device's own SetPos bounds check rejects the negative start sector with an
// IoError, after the head sectors have already been written to dst.
func Copy(src, dst *device.Device) error {
	sect := make([]byte, device.SectorSize)

	if err := src.SetPos(0); err != nil {
		return err
	}
	for i := 0; i < headSectors; i++ {
		if err := src.Read(sect, 1); err != nil {
			return err
		}
		if err := dst.Write(sect, 1); err != nil {
			return err
		}
	}

	newFile := dst.Size() == 0

	if err := src.SetPos(src.Size() - dbSectors); err != nil {
		return err
	}
	if !newFile {
		if err := dst.SetPos(dst.Size() - dbSectors); err != nil {
			return err
		}
	}

	for i := 0; i < dbSectors; i++ {
		if err := src.Read(sect, 1); err != nil {
			return err
		}
		if err := dst.Write(sect, 1); err != nil {
			return err
		}
	}

	log.Info().Bool("newFile", newFile).Msg("copied LDM database")

	return nil
}

// OpenDestination opens path for writing, creating it if absent. This is
// the Go equivalent of the original diskio::Open-on-a-possibly-missing-path
// path used by _task_copy for its output device.
func OpenDestination(path string) (*device.Device, error) {
	dev, err := device.OpenOrCreate(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "OpenDestination", err)
	}
	return dev, nil
}
