// Copyright 2026 The TeensySPIFlasher Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package spiflash provides the host side of the Teensy SPI flasher:
// a small command/response protocol spoken over a serial link to a
// microcontroller that bridges to a SPI NOR flash chip.
//
// Every request is written in full and flushed before its reply is read.
// After any non-success response the bridge is left in an unpredictable
// state, so the channel is closed before the error is returned; the
// operator has to replug the bridge and run the command again.
package spiflash

import (
	"bytes"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Device issues single protocol commands. Geometry is never stored on the
// Device; block operations take the resolved ChipProfile.
type Device struct {
	ch  *Channel
	cfg config
}

// NewDevice sets up a bridge on an already configured port.
//
// We assume that port.Read has some timeout set
func NewDevice(port Port, opts ...Option) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Device{
		ch:  NewChannel(port, cfg.bufSize),
		cfg: cfg,
	}
}

// Close releases the serial port.
func (d *Device) Close() error {
	return d.ch.Close()
}

// Closed reports whether the channel has been closed, either by Close or
// after a protocol error.
func (d *Device) Closed() bool {
	return d.ch.Closed()
}

// fail closes the channel and passes err through.
func (d *Device) fail(err error) error {
	glog.V(1).Infof("closing after error: %v", err)
	d.ch.Close()
	return err
}

func (d *Device) command(cmd CommandType, params ...[]byte) error {
	glog.V(1).Infof("Executing command %v", cmd)
	if err := d.ch.WriteByte(byte(cmd)); err != nil {
		return d.fail(err)
	}
	for _, p := range params {
		if _, err := d.ch.Write(p); err != nil {
			return d.fail(err)
		}
	}
	return nil
}

// checkResponse reads the response code of cmd. Any code other than
// StatusSuccess closes the channel and is returned as a *CommandError.
func (d *Device) checkResponse(cmd CommandType) error {
	b, err := d.ch.RecvByte()
	if err != nil {
		return d.fail(err)
	}
	status := Status(b)
	if status == StatusSuccess {
		return nil
	}
	cerr := &CommandError{Command: cmd, Status: status}
	if status == StatusCmdNotRecognized {
		if cerr.Opcode, err = d.ch.RecvByte(); err != nil {
			return d.fail(err)
		}
	}
	glog.Errorf("%v", cerr)
	return d.fail(cerr)
}

// Ping checks that the bridge answers and runs the expected firmware
// version.
func (d *Device) Ping() (Version, error) {
	if err := d.command(CmdScriptInfo); err != nil {
		return Version{}, err
	}
	resp, err := d.ch.Recv(3)
	if err != nil {
		return Version{}, d.fail(err)
	}
	ver := Version{Major: resp[1], Minor: resp[2]}
	if status := Status(resp[0]); status != StatusSuccess {
		return ver, d.fail(&CommandError{Command: CmdScriptInfo, Status: status})
	}
	if ver != d.cfg.version {
		return ver, d.fail(&VersionMismatchError{Expected: d.cfg.version, Actual: ver})
	}
	glog.V(1).Infof("Bridge firmware %v", ver)
	return ver, nil
}

// ReadIDs returns the manufacturer and device IDs of the attached chip.
func (d *Device) ReadIDs() (mfID, devID byte, err error) {
	if err = d.command(CmdSPIInfo); err != nil {
		return 0, 0, err
	}
	if err = d.checkResponse(CmdSPIInfo); err != nil {
		return 0, 0, err
	}
	ids, err := d.ch.Recv(2)
	if err != nil {
		return 0, 0, d.fail(err)
	}
	glog.V(1).Infof("Raw ID data: 0x%02x 0x%02x", ids[0], ids[1])
	return ids[0], ids[1], nil
}

// Identify reads the chip IDs and resolves them to a profile. An
// unsupported chip closes the channel.
func (d *Device) Identify() (ChipProfile, error) {
	mfID, devID, err := d.ReadIDs()
	if err != nil {
		return ChipProfile{}, err
	}
	chip, err := LookupChip(mfID, devID)
	if err != nil {
		return ChipProfile{}, d.fail(err)
	}
	return chip, nil
}

func checkBlock(chip ChipProfile, block int) error {
	if block < 0 || block >= chip.BlockCount {
		return errors.Wrapf(ErrPrecondition, "block %d is outside the chip (%d blocks)", block, chip.BlockCount)
	}
	return nil
}

// addressed sends cmd followed by the address of block.
func (d *Device) addressed(cmd CommandType, chip ChipProfile, block int, payload []byte) error {
	if err := checkBlock(chip, block); err != nil {
		return err
	}
	cmd, err := chip.opcode(cmd)
	if err != nil {
		return err
	}
	addr, err := chip.blockAddress(block)
	if err != nil {
		return err
	}
	glog.V(2).Infof("%v block %d addr 0x%08x", cmd, block, DecodeAddress(addr))
	if payload == nil {
		return d.command(cmd, addr)
	}
	return d.command(cmd, addr, payload)
}

// ReadBlock returns the contents of block.
func (d *Device) ReadBlock(chip ChipProfile, block int) ([]byte, error) {
	if err := d.addressed(CmdReadBlock, chip, block, nil); err != nil {
		return nil, err
	}
	if err := d.checkResponse(CmdReadBlock); err != nil {
		return nil, err
	}
	data, err := d.ch.Recv(chip.BlockSize())
	if err != nil {
		return nil, d.fail(err)
	}
	return data, nil
}

// EraseBlock erases every sector of block.
func (d *Device) EraseBlock(chip ChipProfile, block int) error {
	if err := d.addressed(CmdEraseBlock, chip, block, nil); err != nil {
		return err
	}
	return d.checkResponse(CmdEraseBlock)
}

// EraseChip erases the whole chip. This can take several minutes; the
// port's read timeout has to allow for it.
func (d *Device) EraseChip() error {
	if err := d.command(CmdEraseChip); err != nil {
		return err
	}
	return d.checkResponse(CmdEraseChip)
}

// ProgramBlock erases block, writes data to it and reads it back. A
// read-back mismatch is returned as a *VerifyError and leaves the channel
// open.
func (d *Device) ProgramBlock(chip ChipProfile, data []byte, block int) error {
	if len(data) != chip.BlockSize() {
		return errors.Wrapf(ErrPrecondition, "incorrect length %d != %d", len(data), chip.BlockSize())
	}
	if err := checkBlock(chip, block); err != nil {
		return err
	}

	if err := d.EraseBlock(chip, block); err != nil {
		return err
	}
	if err := d.addressed(CmdWriteBlock, chip, block, data); err != nil {
		return err
	}
	if err := d.checkResponse(CmdWriteBlock); err != nil {
		return err
	}

	readData, err := d.ReadBlock(chip, block)
	if err != nil {
		return err
	}
	if !bytes.Equal(data, readData) {
		verr := compareBlock(block, data, readData)
		glog.Errorf("Error! %v", verr)
		return verr
	}
	return nil
}

func compareBlock(block int, want, got []byte) *VerifyError {
	verr := &VerifyError{Block: block, First: -1}
	for i := range want {
		if want[i] != got[i] {
			if verr.First < 0 {
				verr.First = i
			}
			verr.Last = i
			verr.Mismatches++
		}
	}
	return verr
}
