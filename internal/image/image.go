// Copyright 2026 The TeensySPIFlasher Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package image reads and writes flash images. Files ending in .hex are
// Intel HEX; anything else is a raw binary image of the chip.
package image

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// Erased is the value of an erased NOR byte. Gaps in HEX images are
// filled with it.
const Erased = 0xFF

func isHex(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".hex")
}

// Load reads the image at path. HEX images are flattened from address 0
// and padded to a multiple of blockSize.
func Load(path string, blockSize int) ([]byte, error) {
	if !isHex(path) {
		return os.ReadFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseHex(f, blockSize)
}

// ParseHex flattens an Intel HEX stream into a binary image starting at
// address 0.
func ParseHex(r io.Reader, blockSize int) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, errors.Wrap(err, "parse intel hex")
	}
	var end uint32
	for _, s := range mem.GetDataSegments() {
		if e := s.Address + uint32(len(s.Data)); e > end {
			end = e
		}
	}
	size := end
	if blockSize > 0 {
		bs := uint32(blockSize)
		size = (end + bs - 1) / bs * bs
	}
	return mem.ToBinary(0, size, Erased), nil
}

// Create opens path for a dump whose first byte is at chip address base.
// Raw images are written through as they arrive. HEX images are collected
// and encoded on Close, so a HEX dump holds the whole range in memory.
func Create(path string, base uint32) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !isHex(path) {
		return f, nil
	}
	return NewHexWriter(f, base), nil
}

// HexWriter collects written bytes at consecutive addresses and encodes
// them as Intel HEX on Close.
type HexWriter struct {
	w    io.Writer
	mem  *gohex.Memory
	addr uint32
}

// NewHexWriter returns a HexWriter whose first byte lands at base. If w
// is an io.Closer it is closed by Close.
func NewHexWriter(w io.Writer, base uint32) *HexWriter {
	return &HexWriter{w: w, mem: gohex.NewMemory(), addr: base}
}

func (h *HexWriter) Write(p []byte) (int, error) {
	if err := h.mem.AddBinary(h.addr, append([]byte(nil), p...)); err != nil {
		return 0, errors.Wrapf(err, "add data at 0x%08x", h.addr)
	}
	h.addr += uint32(len(p))
	return len(p), nil
}

func (h *HexWriter) Close() error {
	err := h.mem.DumpIntelHex(h.w, 16)
	if c, ok := h.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
