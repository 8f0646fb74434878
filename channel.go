// Copyright 2026 The TeensySPIFlasher Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spiflash

import (
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// DefaultBufferSize is the outbound buffer threshold used when none is given.
const DefaultBufferSize = 32768

// Port is the raw byte stream to the bridge. The port is expected to be
// open and configured; reads must time out on their own.
//
//go:generate mockgen -destination=mocks/port.go -package=mocks github.com/alex-joens/TeensySPIFlasher Port
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// drainer is implemented by ports that can block until the OS output
// buffer has been transmitted.
type drainer interface {
	Drain() error
}

// Channel buffers writes to a Port and flushes them before every read,
// so the link behaves as a half-duplex request/response pipe.
type Channel struct {
	port    Port
	obuf    []byte
	bufSize int
}

// NewChannel wraps port. A bufSize <= 0 selects DefaultBufferSize.
func NewChannel(port Port, bufSize int) *Channel {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Channel{
		port:    port,
		obuf:    make([]byte, 0, bufSize),
		bufSize: bufSize,
	}
}

// Write queues p for transmission. Whenever the queue grows past the
// buffer size, a buffer-sized prefix is sent immediately.
func (c *Channel) Write(p []byte) (int, error) {
	if c.port == nil {
		return 0, ErrClosed
	}
	c.obuf = append(c.obuf, p...)
	for len(c.obuf) > c.bufSize {
		if err := c.send(c.obuf[:c.bufSize]); err != nil {
			return 0, err
		}
		c.obuf = append(c.obuf[:0], c.obuf[c.bufSize:]...)
	}
	return len(p), nil
}

// WriteByte queues a single byte.
func (c *Channel) WriteByte(b byte) error {
	_, err := c.Write([]byte{b})
	return err
}

// Buffered returns the number of bytes waiting to be flushed.
func (c *Channel) Buffered() int {
	return len(c.obuf)
}

// Flush sends everything queued so far.
func (c *Channel) Flush() error {
	if c.port == nil {
		return ErrClosed
	}
	if len(c.obuf) == 0 {
		return nil
	}
	if err := c.send(c.obuf); err != nil {
		return err
	}
	c.obuf = c.obuf[:0]
	if d, ok := c.port.(drainer); ok {
		if err := d.Drain(); err != nil {
			return &SerialError{Op: "drain", Err: err}
		}
	}
	return nil
}

func (c *Channel) send(p []byte) error {
	glog.V(2).Infof("send %d bytes", len(p))
	n, err := c.port.Write(p)
	if err != nil {
		return &SerialError{Op: "write", Err: err}
	}
	if n != len(p) {
		return &SerialError{Op: fmt.Sprintf("write %d of %d bytes", n, len(p)), Err: io.ErrShortWrite}
	}
	return nil
}

// Recv flushes pending writes and then blocks until exactly n bytes have
// been received. A read that returns nothing is the port's timeout.
func (c *Channel) Recv(n int) ([]byte, error) {
	if err := c.Flush(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	for got := 0; got < n; {
		m, err := c.port.Read(buf[got:])
		got += m
		if m > 0 {
			continue
		}
		if err == nil || err == io.EOF {
			return nil, errors.Wrapf(ErrDeviceTimeout, "received %d of %d bytes", got, n)
		}
		return nil, &SerialError{Op: "read", Err: err}
	}
	glog.V(2).Infof("recv %d bytes", n)
	return buf, nil
}

// RecvByte receives a single byte.
func (c *Channel) RecvByte() (byte, error) {
	buf, err := c.Recv(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	return c.port == nil
}

// Close releases the port. Unflushed bytes are dropped. Calling Close on
// a closed channel only logs.
func (c *Channel) Close() error {
	glog.Info("Closing serial device...")
	if c.port == nil {
		glog.Info("Device already closed.")
		return nil
	}
	err := c.port.Close()
	c.port = nil
	c.obuf = c.obuf[:0]
	if err != nil {
		return &SerialError{Op: "close", Err: err}
	}
	glog.Info("Done.")
	return nil
}
