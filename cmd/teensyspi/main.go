// Copyright 2026 The TeensySPIFlasher Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Teensyspi reads, erases and programs the SPI NOR flash attached to a
// Teensy running the SPI flasher firmware.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	spiflash "github.com/alex-joens/TeensySPIFlasher"
)

var (
	baudRate   uint
	readTime   time.Duration
	transport  string
	bufferSize int
)

var rootCmd = &cobra.Command{
	Use:   "teensyspi SerialPort Command",
	Short: "Teensy SPI NOR flasher",
	Long: fmt.Sprintf("TeensySPIFlasher %v - Teensy 4.1 SPI Flasher for PS4",
		spiflash.HostVersion),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.RunE = run
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) { printHelp(cmd) })
	rootCmd.PersistentFlags().UintVar(&baudRate, "baud", 115200, "serial baud rate")
	rootCmd.PersistentFlags().DurationVar(&readTime, "timeout", 300*time.Second, "serial read timeout")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", transportBugst,
		"serial driver: "+transportJacobsa+" or "+transportBugst)
	rootCmd.PersistentFlags().IntVar(&bufferSize, "buffer", spiflash.DefaultBufferSize, "outbound buffer size in bytes")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func printHelp(cmd *cobra.Command) {
	fmt.Println("Usage:")
	fmt.Println("teensyspi [flags] SerialPort Command")
	fmt.Println()
	fmt.Println("  SerialPort: Name of serial port to open (eg. COM1, COM2, /dev/ttyACM0, etc.)")
	fmt.Println("  Commands:")
	fmt.Println("  *  info")
	fmt.Println("     Displays chip information")
	fmt.Println("  *  dump Filename [Offset] [Length]")
	fmt.Println("     Dumps to Filename at [Offset] and [Length]")
	fmt.Println("  *  vwrite/write Filename [Offset] [Length]")
	fmt.Println("     Flashes and verifies Filename at [Offset] and [Length]")
	fmt.Println("     (vwrite and write commands are identical)")
	fmt.Println("  *  erasechip")
	fmt.Println("     Erases the entire chip")
	fmt.Println()
	fmt.Println("     Note: All offsets and lengths are in decimal (number of blocks).")
	fmt.Println("     Files ending in .hex are read and written as Intel HEX.")
	fmt.Println()
	fmt.Println("  teensyspi ports")
	fmt.Println("     Lists the serial ports of this machine")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Print(cmd.PersistentFlags().FlagUsages())
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  teensyspi COM1 info")
	fmt.Println("  teensyspi COM2 dump d:\\myflash.bin")
	fmt.Println("  teensyspi COM2 dump d:\\myflash.bin 10 20")
	fmt.Println("  teensyspi COM3 write d:\\myflash.bin")
	fmt.Println("  teensyspi COM3 write d:\\myflash.bin 10 20")
	fmt.Println("  teensyspi COM4 vwrite d:\\myflash.hex")
	fmt.Println("  teensyspi --transport jacobsa --timeout 20s /dev/ttyACM0 info")
}

func run(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && args[0] == "ports" {
		return listPorts()
	}

	fmt.Printf("TeensySPIFlasher %v - Teensy 4.1 SPI Flasher for PS4\n\n", spiflash.HostVersion)
	if len(args) < 2 || (len(args) == 2 && args[1] == "help") {
		printHelp(cmd)
		return nil
	}

	op, ok := operations[args[1]]
	if !ok || len(args)-2 < op.minArgs || len(args)-2 > op.maxArgs {
		printHelp(cmd)
		return errors.Errorf("invalid command: %v", args[1:])
	}
	req, err := op.parse(args[2:])
	if err != nil {
		return err
	}

	port, err := openPort(args[0])
	if err != nil {
		return err
	}
	fmt.Println("Pinging Teensy...")
	start := time.Now()
	s, err := spiflash.Open(port,
		spiflash.WithBufferSize(bufferSize),
		spiflash.WithProgress(printProgress),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	printChipInfo(s.Chip())
	if err := op.run(s, req); err != nil {
		fmt.Println()
		if !errors.Is(err, spiflash.ErrPrecondition) {
			return err
		}
		// Nothing was sent; report and finish normally.
		fmt.Println("Error:", err)
	}

	fmt.Println()
	fmt.Printf("Done. [%v]\n", time.Since(start).Round(time.Second))
	return nil
}

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		glog.Error(err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		glog.Flush()
		os.Exit(1)
	}
}
