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

// Package ldm implements the LDM metadata engine: decoding PRIVHEAD,
// TOCBLOCK, VMDB and VBLK records, reconstructing the disk/partition/volume
// graph, dumping it, and patching a single volume's partition-type byte.
package ldm

import (
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/flatcap/ldm/internal/device"
	"github.com/flatcap/ldm/internal/errs"
	"github.com/flatcap/ldm/internal/printer"
	"github.com/flatcap/ldm/internal/util"
)

const (
	sectorSize    = 512
	vblkSize      = 128
	requiredMajor = 2
	requiredMinor = 11

	// Absolute/db-relative sector offsets of the three PRIVHEAD copies.
	// ph[0] is absolute; ph[1] and ph[2] are relative to db_start.
	privHeadAbsSector  = 6
	privHeadRelSector1 = 1856
	privHeadRelSector2 = 2047

	tocBlockRelSector = 1
)

// LdmDatabase is the assembled, in-memory view of an LDM disk group: the
// disk->partition->volume graph plus enough bookkeeping to patch a single
// volume's type byte back onto the device it was read from.
type LdmDatabase struct {
	disks   map[uint64]*Disk
	volumes map[VolumeID]*Volume
}

// Read locates and loads PRIVHEAD/TOCBLOCK/VMDB/VBLK from device, and
// assembles the disk/partition/volume graph. On success each Partition's Vol
// holds the parent id of its COMPONENT record (0 if no such COMPONENT was
// seen) and each Disk's Partlist is sorted by Start ascending. Read does not
// check that a Volume with that id exists; Dump reports a Partition whose
// Vol does not resolve as a FormatError.
func (ldb *LdmDatabase) Read(dev *device.Device) error {
	if dev.SectorSize() != sectorSize {
		return errs.New(errs.FormatError, "Illegal sector size")
	}

	ph, err := ldb.readPrivHead(dev)
	if err != nil {
		return err
	}
	if ph.VMajor != requiredMajor || ph.VMinor != requiredMinor {
		return errs.New(errs.FormatError, "Bad privhead version")
	}

	tb, err := ldb.readTocBlock(dev, int64(ph.DbStart))
	if err != nil {
		return err
	}

	vmdbSector := int64(ph.DbStart) + int64(tb.Bitmap1Start)
	vm, err := ldb.readVmdb(dev, vmdbSector)
	if err != nil {
		return err
	}
	if vm.VblkSize != vblkSize {
		return errs.New(errs.FormatError, "Illegal VBLK size")
	}

	disks := map[uint64]*Disk{}
	volumes := map[VolumeID]*Volume{}
	compmap := map[uint64]uint64{}

	log.Debug().Uint32("seqlast", vm.Seqlast).Msg("scanning VBLK table")

	sect := make([]byte, sectorSize)
	s := vmdbSector
	for i := uint32(0); i < vm.Seqlast; i++ {
		if i%4 == 0 {
			if err := dev.Read(sect, 1); err != nil {
				return err
			}
			s++
		}

		slot := sect[(i%4)*vblkSize : (i%4+1)*vblkSize]
		vb, ok := DecodeVblk(slot)
		if !ok {
			if log.Trace().Enabled() {
				log.Trace().Msg(util.DumpVblkSlot(s, int(i%4), slot))
			}
			continue
		}

		switch vb.RecordType {
		case RecordComponent:
			compmap[vb.ObjectID] = vb.ComponentParentID

		case RecordDisk1, RecordDisk2:
			d := disks[vb.ObjectID]
			if d == nil {
				d = &Disk{}
				disks[vb.ObjectID] = d
			}
			d.ID = vb.ObjectID
			d.Name = vb.ObjName

		case RecordPartition:
			part := Partition{
				ID:    vb.ObjectID,
				PID:   vb.PartitionParentID,
				Start: ph.DiskStart + vb.PartitionStart,
				Size:  vb.PartitionSize,
			}
			d := disks[vb.PartitionDiskID]
			if d == nil {
				d = &Disk{}
				disks[vb.PartitionDiskID] = d
			}
			d.Partlist = append(d.Partlist, part)

		case RecordVolume:
			vol := &Volume{
				ID:          VolumeID(vb.ObjectID),
				Type:        vb.VolumeType,
				Toffset:     vb.VolumeTypeAtOffset,
				VblkSect:    s,
				VblkSubsect: int(i % 4),
			}
			volumes[vol.ID] = vol
		}
	}

	for _, d := range disks {
		for i := range d.Partlist {
			d.Partlist[i].Vol = VolumeID(compmap[d.Partlist[i].PID])
		}
		sort.Slice(d.Partlist, func(i, j int) bool {
			return d.Partlist[i].Start < d.Partlist[j].Start
		})
	}

	ldb.disks = disks
	ldb.volumes = volumes

	log.Info().Int("disks", len(disks)).Int("volumes", len(volumes)).Msg("LDM database loaded")

	return nil
}

func (ldb *LdmDatabase) readPrivHead(dev *device.Device) (PrivHead, error) {
	sect := make([]byte, sectorSize)

	if err := dev.ReadAt(sect, 1, privHeadAbsSector); err != nil {
		return PrivHead{}, err
	}
	ph0, ok := DecodePrivHead(sect)
	if !ok {
		return PrivHead{}, errs.New(errs.FormatError, "Unable to parse privhead 1")
	}

	if err := dev.ReadAt(sect, 1, int64(ph0.DbStart)+privHeadRelSector1); err != nil {
		return PrivHead{}, err
	}
	ph1, ok := DecodePrivHead(sect)
	if !ok {
		return PrivHead{}, errs.New(errs.FormatError, "Unable to parse privhead 2")
	}

	if err := dev.ReadAt(sect, 1, int64(ph0.DbStart)+privHeadRelSector2); err != nil {
		return PrivHead{}, err
	}
	ph2, ok := DecodePrivHead(sect)
	if !ok {
		return PrivHead{}, errs.New(errs.FormatError, "Unable to parse privhead 3")
	}

	if ph0.DbStart != ph1.DbStart || ph0.DbStart != ph2.DbStart {
		return PrivHead{}, errs.New(errs.FormatError, "PRIVHEAD copies disagree on db_start")
	}

	return ph2, nil
}

func (ldb *LdmDatabase) readTocBlock(dev *device.Device, dbStart int64) (TocBlock, error) {
	sect := make([]byte, sectorSize)
	if err := dev.ReadAt(sect, 1, dbStart+tocBlockRelSector); err != nil {
		return TocBlock{}, err
	}
	tb, ok := DecodeTocBlock(sect)
	if !ok {
		return TocBlock{}, errs.New(errs.FormatError, "Unable to parse tocblock 1")
	}
	return tb, nil
}

func (ldb *LdmDatabase) readVmdb(dev *device.Device, sector int64) (Vmdb, error) {
	sect := make([]byte, sectorSize)
	if err := dev.ReadAt(sect, 1, sector); err != nil {
		return Vmdb{}, err
	}
	vm, ok := DecodeVmdb(sect)
	if !ok {
		return Vmdb{}, errs.New(errs.FormatError, "Unable to parse vmdb")
	}
	return vm, nil
}

// Disks returns the disk ids present in the model, in ascending order.
func (ldb *LdmDatabase) Disks() []uint64 {
	ids := make([]uint64, 0, len(ldb.disks))
	for id := range ldb.disks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Disk returns the Disk with the given id, or nil if unknown.
func (ldb *LdmDatabase) Disk(id uint64) *Disk {
	return ldb.disks[id]
}

// Volume returns the Volume with the given id, or nil if unknown.
func (ldb *LdmDatabase) Volume(id VolumeID) *Volume {
	return ldb.volumes[id]
}

// Dump renders the assembled model as a human-readable table via the
// printer collaborator. It fails with a FormatError if any Disk has an
// empty name, or if a Partition's Volume reference cannot be resolved.
func (ldb *LdmDatabase) Dump(out io.Writer) error {
	p := printer.New(out)
	for _, diskID := range ldb.Disks() {
		d := ldb.disks[diskID]
		if d.Name == "" {
			return errs.New(errs.FormatError, "Bad disk entry found")
		}

		p.DiskHeader(d.Name, d.ID)

		for _, part := range d.Partlist {
			vol := ldb.volumes[part.Vol]
			if vol == nil {
				return errs.New(errs.FormatError, fmt.Sprintf("partition %d has no resolvable volume", part.ID))
			}
			p.WriteRow(printer.Row{
				PartitionID: part.ID,
				Start:       part.Start,
				SizeSectors: part.Size,
				VolumeID:    uint64(vol.ID),
				VolumeType:  vol.Type,
			})
		}
	}
	if err := p.Flush(); err != nil {
		return errs.Wrap(errs.IoError, "Dump", err)
	}
	return nil
}

// ChangeVolumeType overwrites the single type byte of volumeId on disk. It
// is a single-sector read-modify-write and is not transactional: a failure
// after the read but during the write leaves that sector inconsistent.
func (ldb *LdmDatabase) ChangeVolumeType(dev *device.Device, volumeID VolumeID, newType byte) error {
	vol := ldb.volumes[volumeID]
	if vol == nil {
		return errs.New(errs.FormatError, "Volume id not found")
	}

	sect := make([]byte, sectorSize)
	if err := dev.ReadAt(sect, 1, vol.VblkSect); err != nil {
		return err
	}

	sect[vol.VblkSubsect*vblkSize+vol.Toffset] = newType

	if err := dev.WriteAt(sect, 1, vol.VblkSect); err != nil {
		return err
	}

	vol.Type = newType
	return nil
}
