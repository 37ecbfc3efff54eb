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

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/flatcap/ldm/internal/device"
)

// imageSectors is the size (in sectors) of every synthesized test image: a
// 1MiB device whose entire body is the LDM database (dbStart == 0), mirroring
// the real convention that the LDM database occupies the last 2048 sectors.
const imageSectors = 2048

// vmdbSectorForTest is the absolute sector of the synthesized VMDB header;
// chosen clear of the fixed sectors (1, 6, 1856, 2047) the PRIVHEAD/TOC
// copies live at, with headroom after it for a couple of VBLK sectors.
const vmdbSectorForTest = 10

func encodeNum(v uint64, n int) []byte {
	out := make([]byte, 1+n)
	out[0] = byte(n)
	for i := 0; i < n; i++ {
		out[1+i] = byte(v >> uint(8*(n-1-i)))
	}
	return out
}

func encodeStr(s string) []byte {
	out := make([]byte, 1+len(s))
	out[0] = byte(len(s))
	copy(out[1:], s)
	return out
}

func putString(dst []byte, s string) {
	copy(dst, s)
}

// vblkRecord describes one VBLK slot to synthesize.
type vblkRecord struct {
	recordType byte
	objectID   uint64
	objName    string

	// partition fields
	partStart, partOffset, partSize, partParentID, partDiskID uint64

	// component fields
	componentParentID uint64

	// volume fields
	volumeType byte
}

// buildVblk renders one 128-byte VBLK slot, matching DecodeVblk's cursor
// arithmetic exactly.
func buildVblk(r vblkRecord) []byte {
	slot := make([]byte, vblkSize)
	copy(slot[vblkOffSignature:], signatureVblk)
	binary.BigEndian.PutUint32(slot[vblkOffVmdbSeq:], 1)
	binary.BigEndian.PutUint16(slot[vblkOffRecord:], 0)
	binary.BigEndian.PutUint16(slot[vblkOffNrecords:], 1)

	cursor := vblkOffPayload
	slot[cursor+3] = r.recordType
	cursor += 8 // recordtype word + unknown field

	b := encodeNum(r.objectID, 4)
	copy(slot[cursor:], b)
	cursor += len(b)

	b = encodeStr(r.objName)
	copy(slot[cursor:], b)
	cursor += len(b)

	switch r.recordType {
	case RecordComponent:
		b = encodeNum(0, 1) // skipped length-prefixed field
		copy(slot[cursor:], b)
		cursor += len(b)
		cursor += 23
		b = encodeNum(r.componentParentID, 4)
		copy(slot[cursor:], b)
		cursor += len(b)

	case RecordPartition:
		cursor += 12
		binary.BigEndian.PutUint64(slot[cursor:], r.partStart)
		cursor += 8
		binary.BigEndian.PutUint64(slot[cursor:], r.partOffset)
		cursor += 8
		b = encodeNum(r.partSize, 4)
		copy(slot[cursor:], b)
		cursor += len(b)
		b = encodeNum(r.partParentID, 4)
		copy(slot[cursor:], b)
		cursor += len(b)
		b = encodeNum(r.partDiskID, 4)
		copy(slot[cursor:], b)
		cursor += len(b)

	case RecordVolume:
		b = encodeNum(0, 1)
		copy(slot[cursor:], b)
		cursor += len(b)
		cursor += 1 + 14 + 25
		b = encodeNum(0, 1)
		copy(slot[cursor:], b)
		cursor += len(b)
		cursor += 4
		slot[cursor] = r.volumeType
		cursor += 1 + 16
		b = encodeNum(0, 1)
		copy(slot[cursor:], b)
		cursor += len(b)

	case RecordDisk1, RecordDisk2:
		// no further payload

	case 0xFF:
		// deliberately unrecognized, exercised by the unknown-vblk scenario
	}

	if cursor > vblkSize {
		panic("synthesized VBLK slot overflowed 128 bytes")
	}
	return slot
}

// testImage synthesizes a complete 1MiB LDM image: PRIVHEAD (3 copies),
// TOCBLOCK, VMDB, and one VBLK sector per 4 records in records.
func testImage(t *testing.T, diskID uint64, diskName string, records []vblkRecord) []byte {
	t.Helper()

	img := make([]byte, imageSectors*device.SectorSize)
	sector := func(n int64) []byte {
		off := n * device.SectorSize
		return img[off : off+device.SectorSize]
	}

	// PRIVHEAD, 3 copies: absolute sector 6, then dbStart-relative 1856 and
	// 2047. dbStart is 0 for every test image.
	writePrivHead := func(sec []byte) {
		copy(sec[phOffSignature:], signaturePrivHead)
		binary.BigEndian.PutUint16(sec[phOffVerMajor:], requiredMajor)
		binary.BigEndian.PutUint16(sec[phOffVerMinor:], requiredMinor)
		putString(sec[phOffDiskID:phOffDiskID+64], "disk-guid")
		putString(sec[phOffDgrpID:phOffDgrpID+64], "dgrp-guid")
		binary.BigEndian.PutUint64(sec[phOffDiskStart:], 0)
		binary.BigEndian.PutUint64(sec[phOffDiskSize:], imageSectors)
		binary.BigEndian.PutUint64(sec[phOffDbStart:], 0)
		binary.BigEndian.PutUint64(sec[phOffDbSize:], imageSectors)
		binary.BigEndian.PutUint64(sec[phOffNtocs:], 1)
		binary.BigEndian.PutUint64(sec[phOffTocSize:], 1)
		binary.BigEndian.PutUint32(sec[phOffNconfigs:], 1)
		binary.BigEndian.PutUint64(sec[phOffConfigSize:], 1)
	}
	writePrivHead(sector(privHeadAbsSector))
	writePrivHead(sector(privHeadRelSector1))
	writePrivHead(sector(privHeadRelSector2))

	// TOCBLOCK at dbStart+1.
	tb := sector(tocBlockRelSector)
	copy(tb[tocOffSignature:], signatureTocBlock)
	binary.BigEndian.PutUint64(tb[tocOffBitmap1Start:], vmdbSectorForTest)

	// VMDB header.
	vm := sector(vmdbSectorForTest)
	copy(vm[vmdbOffSignature:], signatureVmdb)
	binary.BigEndian.PutUint32(vm[vmdbOffVblkSize:], vblkSize)
	binary.BigEndian.PutUint16(vm[vmdbOffVerMajor:], requiredMajor)
	binary.BigEndian.PutUint16(vm[vmdbOffVerMinor:], requiredMinor)
	putString(vm[vmdbOffDgGuid:vmdbOffDgGuid+64], "dg-guid")

	// DISK record plus the caller-supplied VBLKs, packed 4-per-sector
	// starting at vmdbSectorForTest+1.
	all := append([]vblkRecord{{recordType: RecordDisk1, objectID: diskID, objName: diskName}}, records...)
	for i, rec := range all {
		sec := sector(vmdbSectorForTest + 1 + int64(i/4))
		copy(sec[(i%4)*vblkSize:(i%4+1)*vblkSize], buildVblk(rec))
	}

	// Patch Seqlast to include the DISK record too.
	binary.BigEndian.PutUint32(vm[vmdbOffSeq:], uint32(len(all)))

	return img
}

// openTestImage writes img to a fresh temp file and opens it via
// internal/device.
func openTestImage(t *testing.T, img []byte, readOnly bool) *device.Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ldm.img")
	if err := os.WriteFile(path, img, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dev, err := device.Open(path, readOnly)
	if err != nil {
		t.Fatalf("device.Open: %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}
