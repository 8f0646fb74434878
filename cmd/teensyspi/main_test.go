package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	spiflash "github.com/alex-joens/TeensySPIFlasher"
)

const testBlockSize = 0x10000

// bridge answers like a Teensy with an MX25L25635F whose blocks all read
// back as 0xA5.
type bridge struct {
	in, out bytes.Buffer
	cmds    []byte
	closed  bool
}

func (b *bridge) Write(p []byte) (int, error) {
	b.in.Write(p)
	for b.in.Len() > 0 {
		req := b.in.Bytes()
		switch spiflash.CommandType(req[0]) {
		case spiflash.CmdScriptInfo:
			b.out.Write([]byte{0, 0, 1})
		case spiflash.CmdSPIInfo:
			b.out.Write([]byte{0, 0xC2, 0x18})
		case spiflash.CmdReadBlock:
			if len(req) < 5 {
				return len(p), nil
			}
			b.out.WriteByte(0)
			b.out.Write(bytes.Repeat([]byte{0xA5}, testBlockSize))
			b.in.Next(4)
		case spiflash.CmdEraseChip:
			b.out.WriteByte(0)
		default:
			b.out.Write([]byte{2, req[0]})
		}
		b.cmds = append(b.cmds, req[0])
		b.in.Next(1)
	}
	return len(p), nil
}

func (b *bridge) Read(p []byte) (int, error) {
	if b.out.Len() == 0 {
		return 0, io.EOF
	}
	return b.out.Read(p)
}

func (b *bridge) Close() error {
	b.closed = true
	return nil
}

// useBridge makes run talk to a simulated bridge instead of a serial port.
func useBridge(t *testing.T) *bridge {
	b := &bridge{}
	saved := openPort
	openPort = func(name string) (spiflash.Port, error) {
		if name != "COM1" {
			t.Errorf("opened %q, want COM1", name)
		}
		return b, nil
	}
	t.Cleanup(func() { openPort = saved })
	return b
}

func noPort(t *testing.T) {
	saved := openPort
	openPort = func(name string) (spiflash.Port, error) {
		t.Errorf("opened %q", name)
		return nil, io.EOF
	}
	t.Cleanup(func() { openPort = saved })
}

func TestRootHelp(t *testing.T) {
	noPort(t)
	for _, args := range [][]string{{"COM1", "help"}, {"COM1"}, {}} {
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			t.Errorf("Execute(%q): %v", args, err)
		}
	}
	rootCmd.SetArgs(nil)
}

func TestRunInvalidCommand(t *testing.T) {
	noPort(t)
	for _, args := range [][]string{
		{"COM1", "flash"},
		{"COM1", "dump"},
		{"COM1", "info", "extra"},
		{"COM1", "dump", "out.bin", "1", "2", "3"},
		{"COM1", "dump", "out.bin", "-1"},
	} {
		if err := run(rootCmd, args); err == nil {
			t.Errorf("run(%q) succeeded", args)
		}
	}
}

func TestRunInfo(t *testing.T) {
	b := useBridge(t)
	if err := run(rootCmd, []string{"COM1", "info"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(b.cmds, []byte{0, 1}) {
		t.Errorf("commands = %v, want ping and SPI info", b.cmds)
	}
	if !b.closed {
		t.Error("port left open")
	}
}

func TestRunDump(t *testing.T) {
	b := useBridge(t)
	path := filepath.Join(t.TempDir(), "flash.bin")
	if err := run(rootCmd, []string{"COM1", "dump", path, "2", "3"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0xA5}, 3*testBlockSize)) {
		t.Errorf("dump is %d bytes, want 3 blocks of 0xA5", len(got))
	}
	if !bytes.Equal(b.cmds, []byte{0, 1, 2, 2, 2}) {
		t.Errorf("commands = %v", b.cmds)
	}
}

func TestRunSkipsInvalidImage(t *testing.T) {
	b := useBridge(t)
	path := filepath.Join(t.TempDir(), "short.bin")
	if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run(rootCmd, []string{"COM1", "write", path}); err != nil {
		t.Errorf("run: %v, want the error reported and skipped", err)
	}
	if !bytes.Equal(b.cmds, []byte{0, 1}) {
		t.Errorf("commands = %v, want nothing after identification", b.cmds)
	}
}

func TestRunMissingImage(t *testing.T) {
	useBridge(t)
	path := filepath.Join(t.TempDir(), "missing.bin")
	if err := run(rootCmd, []string{"COM1", "write", path}); err == nil {
		t.Error("run succeeded without an image")
	}
}

func TestJacobsaRejectsLongTimeout(t *testing.T) {
	saved := readTime
	t.Cleanup(func() { readTime = saved })

	for _, d := range []time.Duration{0, 300 * time.Second} {
		readTime = d
		_, err := openJacobsa(filepath.Join(t.TempDir(), "tty"))
		if err == nil || !strings.Contains(err.Error(), "cannot time out") {
			t.Errorf("timeout %v: error = %v", d, err)
		}
	}
}
