package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	jserial "github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	spiflash "github.com/alex-joens/TeensySPIFlasher"
)

const (
	transportJacobsa = "jacobsa"
	transportBugst   = "bugst"
)

// maxInterCharacterTimeout is the longest timeout termios VTIME can hold.
const maxInterCharacterTimeout = 25500 * time.Millisecond

// openPort opens the bridge port. Tests replace it.
var openPort = openSerial

// openSerial opens and configures the serial port with the selected driver.
func openSerial(name string) (spiflash.Port, error) {
	glog.V(1).Infof("Opening %s with %s driver, %d baud, %v timeout", name, transport, baudRate, readTime)
	switch transport {
	case transportJacobsa:
		return openJacobsa(name)
	case transportBugst:
		return openBugst(name)
	default:
		return nil, errors.Errorf("unknown transport %q", transport)
	}
}

func openJacobsa(name string) (spiflash.Port, error) {
	// VTIME is the only read timeout this driver has.
	if readTime <= 0 || readTime > maxInterCharacterTimeout {
		return nil, errors.Errorf("%s driver cannot time out after %v (at most %v), use --transport %s",
			transportJacobsa, readTime, maxInterCharacterTimeout, transportBugst)
	}
	options := jserial.OpenOptions{
		PortName:              name,
		BaudRate:              baudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(readTime / time.Millisecond),
	}
	port, err := jserial.Open(options)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open serial %s", name)
	}
	return port, nil
}

func openBugst(name string) (spiflash.Port, error) {
	mode := &serial.Mode{
		BaudRate: int(baudRate),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open serial %s", name)
	}
	if err := port.SetReadTimeout(readTime); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "set read timeout")
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "flush input")
	}
	if err := port.ResetOutputBuffer(); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "flush output")
	}
	return port, nil
}

// teensyVID is the USB vendor ID of PJRC Teensy boards.
const teensyVID = "16C0"

func listPorts() error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return errors.Wrap(err, "list serial ports")
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}
	for _, p := range ports {
		if !p.IsUSB {
			fmt.Println(p.Name)
			continue
		}
		note := ""
		if strings.EqualFold(p.VID, teensyVID) {
			note = " (Teensy)"
		}
		fmt.Printf("%s  USB %s:%s %s%s\n", p.Name, p.VID, p.PID, p.Product, note)
	}
	return nil
}
