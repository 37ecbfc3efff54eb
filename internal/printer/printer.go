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

// Package printer renders an assembled LDM model as a table. It is a thin
// collaborator: it knows nothing about PRIVHEAD/VBLK/etc, only the rows it
// is handed.
package printer

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Row is one Partition/Volume pair to render.
type Row struct {
	PartitionID uint64
	Start       uint64
	SizeSectors uint64
	VolumeID    uint64
	VolumeType  byte
}

// Printer accumulates disk headers and rows, flushing aligned output to the
// underlying writer.
type Printer struct {
	tw *tabwriter.Writer
}

// New returns a Printer writing to out.
func New(out io.Writer) *Printer {
	return &Printer{tw: tabwriter.NewWriter(out, 2, 4, 2, ' ', tabwriter.AlignRight)}
}

// DiskHeader writes the title line for a disk.
func (p *Printer) DiskHeader(name string, id uint64) {
	fmt.Fprintf(p.tw, "Disk '%s' (%d):\n", name, id)
}

// WriteRow writes one partition/volume row: id, start (sectors), size
// (MiB), volume id, volume type (hex) and its human-readable name.
func (p *Printer) WriteRow(r Row) {
	fmt.Fprintf(p.tw, "%d\t%d\t%.2f\t%d\t%02x\t%s\n",
		r.PartitionID, r.Start, float64(r.SizeSectors)/2048.0, r.VolumeID, r.VolumeType, TypeName(r.VolumeType))
}

// Flush writes any buffered, tab-aligned output.
func (p *Printer) Flush() error {
	return p.tw.Flush()
}

// TypeName looks up the human-readable name for a raw partition-type byte,
// grounded on the common MBR/LDM partition type table (see
// other_examples/d6f82f82_ostafen-digler__internal-disk-mbr.go.go for the
// switch-based pattern this table follows).
func TypeName(t byte) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

var typeNames = map[byte]string{
	0x00: "Empty",
	0x01: "FAT12",
	0x04: "FAT16 <32M",
	0x05: "Extended",
	0x06: "FAT16",
	0x07: "NTFS / HPFS / exFAT",
	0x0b: "FAT32 (CHS)",
	0x0c: "FAT32 (LBA)",
	0x0e: "FAT16 (LBA)",
	0x0f: "Extended (LBA)",
	0x11: "Hidden FAT12",
	0x14: "Hidden FAT16 <32M",
	0x16: "Hidden FAT16",
	0x17: "Hidden NTFS / HPFS",
	0x1b: "Hidden FAT32 (CHS)",
	0x1c: "Hidden FAT32 (LBA)",
	0x42: "Microsoft dynamic disk (LDM)",
	0x82: "Linux swap",
	0x83: "Linux native",
	0x8e: "Linux LVM",
	0xa5: "FreeBSD",
	0xa8: "Darwin / macOS UFS",
	0xaf: "Darwin / macOS HFS+",
	0xee: "GPT protective",
	0xef: "EFI system",
}
