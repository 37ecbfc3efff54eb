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

package ldm

// VolumeID is the key used to resolve a Partition's owning Volume. Using a
// plain key into LdmDatabase's volume map instead of a raw pointer (as the
// original ldmutil does) avoids invalidation if the map is ever rebuilt;
// resolution is a safe lookup at use time, and the key must not be used
// past the lifetime of the LdmDatabase it came from.
type VolumeID uint64

// Volume is a logical volume: one or more Partitions sharing a partition
// type byte that lives at a single, precisely tracked location on disk.
type Volume struct {
	ID          VolumeID
	Type        byte  // partition-type byte
	Toffset     int   // byte offset of Type within its VBLK
	VblkSect    int64 // absolute sector containing that VBLK
	VblkSubsect int   // 0..3: which of the 4 VBLKs in VblkSect
}

// Partition is a region on a Disk belonging to a Volume.
type Partition struct {
	ID    uint64
	PID   uint64 // component id, used to resolve Vol
	Start uint64 // absolute sector
	Size  uint64 // sectors
	Vol   VolumeID
}

// Disk is a physical disk within the disk group.
type Disk struct {
	ID       uint64
	Name     string
	Partlist []Partition
}
