// Copyright 2026 The TeensySPIFlasher Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spiflash

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// ChipProfile is the geometry and addressing of a flash chip. A profile is
// resolved once per session and never modified.
type ChipProfile struct {
	Manufacturer string
	Name         string

	ManufacturerID byte
	DeviceID       byte

	SectorSize      int
	SectorsPerBlock int
	BlockCount      int

	// AddressWidth is the number of address bytes the chip takes (3 or 4).
	AddressWidth int
	// Use3ByteCmds selects the 3-byte variants of the addressed commands.
	Use3ByteCmds bool
}

// BlockSize is the unit of every read, erase and write.
func (c ChipProfile) BlockSize() int {
	return c.SectorSize * c.SectorsPerBlock
}

func (c ChipProfile) SectorCount() int {
	return c.SectorsPerBlock * c.BlockCount
}

// Capacity is the chip size in bytes.
func (c ChipProfile) Capacity() int {
	return c.BlockSize() * c.BlockCount
}

// SizeString formats the capacity in KB up to 8 MB and in MB above.
func (c ChipProfile) SizeString() string {
	kb := c.Capacity() / 1024
	if kb <= 8192 {
		return fmt.Sprintf("%d KB", kb)
	}
	return fmt.Sprintf("%d MB", kb/1024)
}

func (c ChipProfile) String() string {
	return fmt.Sprintf("%s %s (0x%02x 0x%02x, %s)",
		c.Manufacturer, c.Name, c.ManufacturerID, c.DeviceID, c.SizeString())
}

// blockAddress returns the encoded address of the first byte of block.
func (c ChipProfile) blockAddress(block int) ([]byte, error) {
	return c.EncodeAddress(uint32(block * c.BlockSize()))
}

// opcode returns the command variant the chip takes for cmd.
func (c ChipProfile) opcode(cmd CommandType) (CommandType, error) {
	if !cmd.hasAddress() {
		return 0, errors.Errorf("%v takes no address", cmd)
	}
	if c.Use3ByteCmds {
		// TODO: the bridge firmware has no 3-byte command variants yet.
		return 0, errors.Wrapf(ErrNotImplemented, "3-byte %v", cmd)
	}
	return cmd, nil
}

// EncodeAddress encodes addr in the chip's address width.
func (c ChipProfile) EncodeAddress(addr uint32) ([]byte, error) {
	switch c.AddressWidth {
	case 4:
		return EncodeAddress(addr), nil
	case 3:
		// TODO: the bridge firmware has no 3-byte address command yet.
		return nil, ErrNotImplemented
	default:
		return nil, errors.Errorf("invalid address width %d", c.AddressWidth)
	}
}

// EncodeAddress returns the 4-byte big-endian encoding of addr.
func EncodeAddress(addr uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, addr)
	return buf
}

// DecodeAddress is the inverse of EncodeAddress.
func DecodeAddress(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf[:4])
}

var manufacturers = map[byte]string{
	0xC2: "Macronix",
}

// SupportedChips lists every chip the bridge can drive.
var SupportedChips = []ChipProfile{
	{
		Manufacturer:    "Macronix",
		Name:            "MX25L25635F",
		ManufacturerID:  0xC2,
		DeviceID:        0x18,
		SectorSize:      0x1000,
		SectorsPerBlock: 16,
		BlockCount:      512,
		AddressWidth:    4,
		Use3ByteCmds:    false,
	},
}

// LookupChip resolves a manufacturer/device ID pair.
func LookupChip(mfID, devID byte) (ChipProfile, error) {
	for _, c := range SupportedChips {
		if c.ManufacturerID == mfID && c.DeviceID == devID {
			return c, nil
		}
	}
	return ChipProfile{}, &UnsupportedChipError{ManufacturerID: mfID, DeviceID: devID}
}
