// Copyright 2026 The TeensySPIFlasher Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spiflash

import (
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Session is a Device whose firmware version has been checked and whose
// chip has been identified.
type Session struct {
	dev     *Device
	chip    ChipProfile
	version Version
}

// Open pings the bridge on port and identifies the attached chip. On
// error the port has been closed.
func Open(port Port, opts ...Option) (*Session, error) {
	dev := NewDevice(port, opts...)
	ver, err := dev.Ping()
	if err != nil {
		return nil, errors.Wrap(err, "ping")
	}
	chip, err := dev.Identify()
	if err != nil {
		return nil, errors.Wrap(err, "identify")
	}
	glog.V(1).Infof("Identified %v", chip)
	return &Session{dev: dev, chip: chip, version: ver}, nil
}

func (s *Session) Chip() ChipProfile { return s.chip }

func (s *Session) Version() Version { return s.version }

func (s *Session) Device() *Device { return s.dev }

func (s *Session) Close() error { return s.dev.Close() }

func (s *Session) ReadBlock(block int) ([]byte, error) {
	return s.dev.ReadBlock(s.chip, block)
}

func (s *Session) EraseBlock(block int) error {
	return s.dev.EraseBlock(s.chip, block)
}

func (s *Session) EraseChip() error {
	return s.dev.EraseChip()
}

func (s *Session) ProgramBlock(data []byte, block int) error {
	return s.dev.ProgramBlock(s.chip, data, block)
}

func (s *Session) report(stage string, block, done, total int) {
	if s.dev.cfg.progress != nil {
		s.dev.cfg.progress(Progress{Stage: stage, Block: block, Done: done, Total: total})
	}
}

// DumpRange returns the blocks Dump would read for offset and count. A
// count of 0 means the rest of the chip; a count running past the end of
// the chip is cut short.
func (s *Session) DumpRange(offset, count int) (int, error) {
	if offset < 0 || offset >= s.chip.BlockCount {
		return 0, errors.Wrapf(ErrPrecondition, "chip has %d blocks, offset %d is outside the chip", s.chip.BlockCount, offset)
	}
	if count < 0 {
		return 0, errors.Wrapf(ErrPrecondition, "negative block count %d", count)
	}
	if count == 0 || offset+count > s.chip.BlockCount {
		count = s.chip.BlockCount - offset
	}
	return count, nil
}

// Dump reads count blocks starting at block offset and writes them to w
// in order, one block at a time.
func (s *Session) Dump(w io.Writer, offset, count int) error {
	count, err := s.DumpRange(offset, count)
	if err != nil {
		return err
	}
	bs := s.chip.BlockSize()
	glog.V(1).Infof("Dumping %d blocks starting at %d", count, offset)
	for block := offset; block < offset+count; block++ {
		data, err := s.ReadBlock(block)
		if err != nil {
			return errors.Wrapf(err, "read block %d", block)
		}
		if _, err := w.Write(data); err != nil {
			return errors.Wrapf(err, "write block %d", block)
		}
		s.report("dump", block, (block-offset+1)*bs, count*bs)
	}
	return nil
}

// ProgramRange checks the preconditions of Program and returns the
// number of blocks it would write. A count of 0 means every block of data
// from offset on. Block offsets apply to data and chip alike.
func (s *Session) ProgramRange(size, offset, count int) (int, error) {
	bs := s.chip.BlockSize()
	if offset < 0 || count < 0 {
		return 0, errors.Wrapf(ErrPrecondition, "negative offset %d or count %d", offset, count)
	}
	if size%bs != 0 {
		return 0, errors.Wrapf(ErrPrecondition, "expecting file size to be a multiple of block size: %d", bs)
	}
	dataBlocks := size / bs
	if count == 0 {
		count = dataBlocks - offset
		if count <= 0 {
			return 0, errors.Wrapf(ErrPrecondition, "file is %d bytes long, nothing to write from block %d", size, offset)
		}
	}
	if offset+count > dataBlocks {
		return 0, errors.Wrapf(ErrPrecondition, "file is %d bytes long and last block is at %d", size, (offset+count)*bs)
	}
	if offset+count > s.chip.BlockCount {
		return 0, errors.Wrapf(ErrPrecondition, "chip has %d blocks, block %d is outside the chip's capacity", s.chip.BlockCount, offset+count-1)
	}
	return count, nil
}

// Program writes count blocks of data starting at block offset, verifying
// each one. It stops at the first block that fails verification and
// returns its *VerifyError.
func (s *Session) Program(data []byte, offset, count int) error {
	count, err := s.ProgramRange(len(data), offset, count)
	if err != nil {
		return err
	}
	bs := s.chip.BlockSize()
	glog.V(1).Infof("Writing %d blocks to device (starting at offset %d)", count, offset)
	for block := offset; block < offset+count; block++ {
		if err := s.ProgramBlock(data[block*bs:(block+1)*bs], block); err != nil {
			return errors.Wrapf(err, "program block %d", block)
		}
		s.report("program", block, (block-offset+1)*bs, count*bs)
	}
	return nil
}
