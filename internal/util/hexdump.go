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

// Package util holds small formatting helpers shared across the engine.
package util

import (
	"fmt"
	"unicode"
)

func hexLine(data []byte, length int) string {
	hex := ""
	ascii := ""
	for i := 0; i < length; i++ {
		if i < len(data) {
			hex += fmt.Sprintf("%02x  ", data[i])
			if unicode.IsPrint(rune(data[i])) {
				ascii += fmt.Sprintf("%c", data[i])
			} else {
				ascii += "."
			}
		} else {
			hex += "    "
			ascii += " "
		}
	}
	return hex + "| " + ascii
}

// HexDump renders length bytes of data, starting at offset start, as a
// classic hex+ASCII dump.
func HexDump(data []byte, start, len int) string {
	res := ""
	for len > 16 {
		res += fmt.Sprintf("%08x: %s\n", start, hexLine(data[start:], 16))
		start += 16
		len -= 16
	}
	if len > 0 {
		res += fmt.Sprintf("%08x: %s\n", start, hexLine(data[start:], len))
	}
	return res
}

// DumpVblkSlot renders one 128-byte VBLK slot for trace logging, labeled
// with the sector it was read from and its index within that sector. Offsets
// in the dump are relative to the start of the slot, the same origin
// DecodeVblk's cursor counts from.
func DumpVblkSlot(sector int64, subslot int, slot []byte) string {
	return fmt.Sprintf("sector %d, slot %d (unparseable):\n%s", sector, subslot, HexDump(slot, 0, len(slot)))
}
