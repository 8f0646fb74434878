package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	spiflash "github.com/alex-joens/TeensySPIFlasher"
	"github.com/alex-joens/TeensySPIFlasher/internal/image"
)

type request struct {
	file   string
	offset int
	count  int
}

type operation struct {
	minArgs, maxArgs int
	run              func(s *spiflash.Session, req request) error
}

// parse reads [file [offset [length]]]. Offset and length are decimal
// block counts; omitted values are 0.
func (op operation) parse(args []string) (request, error) {
	var req request
	if len(args) > 0 {
		req.file = args[0]
	}
	nums := []*int{&req.offset, &req.count}
	for i, a := range args[min(len(args), 1):] {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			return req, errors.Errorf("invalid block number %q", a)
		}
		*nums[i] = n
	}
	return req, nil
}

var operations = map[string]operation{
	"info":      {0, 0, func(*spiflash.Session, request) error { return nil }},
	"dump":      {1, 3, dump},
	"write":     {1, 3, program},
	"vwrite":    {1, 3, program},
	"erasechip": {0, 0, eraseChip},
}

// It is STRONGLY RECOMMENDED to dump the ROM multiple times and compare the
// checksums before flashing the chip.
func dump(s *spiflash.Session, req request) (err error) {
	if _, err := s.DumpRange(req.offset, req.count); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Dumping...")

	base := uint32(req.offset * s.Chip().BlockSize())
	w, err := image.Create(req.file, base)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return s.Dump(w, req.offset, req.count)
}

func program(s *spiflash.Session, req request) error {
	data, err := image.Load(req.file, s.Chip().BlockSize())
	if err != nil {
		return err
	}
	count, err := s.ProgramRange(len(data), req.offset, req.count)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("Writing %d blocks to device (starting at offset %d)...\n", count, req.offset)
	return s.Program(data, req.offset, req.count)
}

func eraseChip(s *spiflash.Session, _ request) error {
	fmt.Println()
	fmt.Println("Erasing chip (this can take up to 5 minutes)...")
	return s.EraseChip()
}

func printChipInfo(c spiflash.ChipProfile) {
	fmt.Println()
	fmt.Println("SPI Information")
	fmt.Println("---------------")
	fmt.Printf("Chip manufacturer: %s (0x%02x)\n", c.Manufacturer, c.ManufacturerID)
	fmt.Printf("Chip type:         %s (0x%02x)\n", c.Name, c.DeviceID)
	fmt.Println()
	fmt.Printf("Chip size:         %s\n", c.SizeString())
	fmt.Printf("Sector size:       %d bytes\n", c.SectorSize)
	fmt.Printf("Block size:        %d bytes\n", c.BlockSize())
	fmt.Printf("Sectors per block: %d\n", c.SectorsPerBlock)
	fmt.Printf("Number of blocks:  %d\n", c.BlockCount)
	fmt.Printf("Number of sectors: %d\n", c.SectorCount())
}

func printProgress(p spiflash.Progress) {
	fmt.Printf("\r%d KB / %d KB", p.Done/1024, p.Total/1024)
}
