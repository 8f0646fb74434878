package spiflash

import (
	"fmt"
)

// CommandType is the opcode byte that starts every request.
type CommandType byte

// CommandType constants
const (
	CmdScriptInfo = CommandType(0)
	CmdSPIInfo    = CommandType(1)
	CmdReadBlock  = CommandType(2)
	CmdEraseChip  = CommandType(3)
	CmdEraseBlock = CommandType(4)
	CmdWriteBlock = CommandType(5)
)

var cmd2String = map[CommandType]string{
	CmdScriptInfo: "SCRIPT_INFO",
	CmdSPIInfo:    "SPI_INFO",
	CmdReadBlock:  "SPI_READ_BLOCK",
	CmdEraseChip:  "SPI_ERASE_CHIP",
	CmdEraseBlock: "SPI_ERASE_BLOCK",
	CmdWriteBlock: "SPI_WRITE_BLOCK",
}

func (c CommandType) String() string {
	if str, ok := cmd2String[c]; ok {
		return str
	}
	return fmt.Sprintf("0x%X", byte(c))
}

// hasAddress reports whether the opcode is followed by a block address.
func (c CommandType) hasAddress() bool {
	return c == CmdReadBlock || c == CmdEraseBlock || c == CmdWriteBlock
}

// Status is the response code that starts every reply.
type Status byte

// Status constants
const (
	StatusSuccess          = Status(0)
	StatusFailure          = Status(1)
	StatusCmdNotRecognized = Status(2)
	StatusAddrReadTimeout  = Status(3)
	StatusWriteProtected   = Status(4)
	StatusChipEraseFailure = Status(5)
	StatusPageReadTimeout  = Status(6)
	StatusPageWriteFailure = Status(7)
)

var status2String = map[Status]string{
	StatusSuccess:          "SUCCESS",
	StatusFailure:          "FAILURE",
	StatusCmdNotRecognized: "CMD_NOT_RECOGNIZED",
	StatusAddrReadTimeout:  "ADDR_READ_TIMEOUT",
	StatusWriteProtected:   "WRITE_PROTECTED",
	StatusChipEraseFailure: "CHIP_ERASE_FAILURE",
	StatusPageReadTimeout:  "PAGE_READ_TIMEOUT",
	StatusPageWriteFailure: "PAGE_WRITE_FAILURE",
}

func (s Status) String() string {
	if str, ok := status2String[s]; ok {
		return str
	}
	return fmt.Sprintf("0x%X", byte(s))
}

// Known reports whether s is one of the defined response codes.
func (s Status) Known() bool {
	_, ok := status2String[s]
	return ok
}

// Version is the bridge firmware version reported by CmdScriptInfo.
type Version struct {
	Major, Minor uint8
}

// HostVersion is the firmware version this driver speaks.
var HostVersion = Version{Major: 0, Minor: 1}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%02d", v.Major, v.Minor)
}
