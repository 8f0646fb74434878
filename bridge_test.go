// Copyright 2026 The TeensySPIFlasher Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spiflash_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	spiflash "github.com/alex-joens/TeensySPIFlasher"
)

type op struct {
	cmd   spiflash.CommandType
	block int
}

// fakeBridge simulates the Teensy firmware and an attached MX25L25635F.
// Unwritten blocks read back as their block number followed by 0xFF.
type fakeBridge struct {
	version    spiflash.Version
	pingStatus spiflash.Status
	mfID       byte
	devID      byte
	blockSize  int

	flash map[int][]byte
	// failOn answers the given command on the given block with a status.
	failOn map[op]spiflash.Status
	// corrupt flips a byte when the block is read back.
	corrupt map[int]bool

	in       []byte
	out      bytes.Buffer
	ops      []op
	received int
	closed   bool
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		version:   spiflash.HostVersion,
		mfID:      0xC2,
		devID:     0x18,
		blockSize: 0x1000 * 16,
		flash:     make(map[int][]byte),
		failOn:    make(map[op]spiflash.Status),
		corrupt:   make(map[int]bool),
	}
}

func (f *fakeBridge) Write(p []byte) (int, error) {
	if f.closed {
		return 0, errors.New("port closed")
	}
	f.received += len(p)
	f.in = append(f.in, p...)
	for f.step() {
	}
	return len(p), nil
}

func (f *fakeBridge) Read(p []byte) (int, error) {
	if f.closed {
		return 0, errors.New("port closed")
	}
	if f.out.Len() == 0 {
		return 0, io.EOF
	}
	return f.out.Read(p)
}

func (f *fakeBridge) Close() error {
	f.closed = true
	return nil
}

func (f *fakeBridge) contents(block int) []byte {
	if data, ok := f.flash[block]; ok {
		return append([]byte(nil), data...)
	}
	data := bytes.Repeat([]byte{0xFF}, f.blockSize)
	binary.BigEndian.PutUint32(data, uint32(block))
	return data
}

// step executes one complete command from the input, if there is one.
func (f *fakeBridge) step() bool {
	if len(f.in) == 0 {
		return false
	}
	cmd := spiflash.CommandType(f.in[0])
	need := 1
	switch cmd {
	case spiflash.CmdReadBlock, spiflash.CmdEraseBlock:
		need = 5
	case spiflash.CmdWriteBlock:
		need = 5 + f.blockSize
	}
	if len(f.in) < need {
		return false
	}
	req := f.in[:need]
	f.in = f.in[need:]

	block := -1
	if need >= 5 {
		block = int(spiflash.DecodeAddress(req[1:5])) / f.blockSize
	}
	o := op{cmd, block}
	f.ops = append(f.ops, o)
	if st, ok := f.failOn[o]; ok {
		f.out.WriteByte(byte(st))
		if st == spiflash.StatusCmdNotRecognized {
			f.out.WriteByte(byte(cmd))
		}
		return true
	}

	switch cmd {
	case spiflash.CmdScriptInfo:
		f.out.Write([]byte{byte(f.pingStatus), f.version.Major, f.version.Minor})
	case spiflash.CmdSPIInfo:
		f.out.Write([]byte{0, f.mfID, f.devID})
	case spiflash.CmdReadBlock:
		data := f.contents(block)
		if f.corrupt[block] {
			data[100] ^= 0x01
		}
		f.out.WriteByte(0)
		f.out.Write(data)
	case spiflash.CmdEraseChip:
		f.flash = make(map[int][]byte)
		f.out.WriteByte(0)
	case spiflash.CmdEraseBlock:
		f.flash[block] = bytes.Repeat([]byte{0xFF}, f.blockSize)
		f.out.WriteByte(0)
	case spiflash.CmdWriteBlock:
		f.flash[block] = append([]byte(nil), req[5:]...)
		f.out.WriteByte(0)
	default:
		f.out.Write([]byte{byte(spiflash.StatusCmdNotRecognized), byte(cmd)})
	}
	return true
}

// opsFor returns the commands issued for block, in order.
func (f *fakeBridge) opsFor(block int) []spiflash.CommandType {
	var cmds []spiflash.CommandType
	for _, o := range f.ops {
		if o.block == block {
			cmds = append(cmds, o.cmd)
		}
	}
	return cmds
}
