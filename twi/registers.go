// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package twi

// Register identifies one of the registers used by the controller.
type Register uint8

// Registers of the TWI peripheral, plus the power reduction register that
// gates its clock.
const (
	TWBR Register = iota // Bit rate divisor.
	TWCR                 // Control.
	TWSR                 // Status in bits 3-7, prescaler in bits 0-1.
	TWDR                 // Data.
	PRR                  // Power reduction.
)

func (r Register) String() string {
	switch r {
	case TWBR:
		return "TWBR"
	case TWCR:
		return "TWCR"
	case TWSR:
		return "TWSR"
	case TWDR:
		return "TWDR"
	case PRR:
		return "PRR"
	default:
		return "Register(?)"
	}
}

// Registers gives access to the peripheral registers.
//
// Implementations must not cache values: every Load observes the hardware.
type Registers interface {
	Load(r Register) byte
	Store(r Register, v byte)
}

// TWCR bits.
const (
	TWINT byte = 1 << 7 // Operation complete; writing 1 clears it and starts the next one.
	TWEA  byte = 1 << 6 // Acknowledge received bytes.
	TWSTA byte = 1 << 5 // Send START.
	TWSTO byte = 1 << 4 // Send STOP; self-clears once done.
	TWWC  byte = 1 << 3
	TWEN  byte = 1 << 2 // Peripheral enable.
	TWIE  byte = 1 << 0
)

// PRTWI is the bit in PRR that powers the TWI peripheral down when set.
const PRTWI byte = 1 << 7

// PrescalerMask selects the prescaler bits in TWSR.
const PrescalerMask byte = 0x03

// Master mode status codes, read from TWSR masked with StatusMask.
const (
	StatusMask            byte = 0xF8
	StatusStart           byte = 0x08
	StatusRepeatedStart   byte = 0x10
	StatusAddrWriteAck    byte = 0x18
	StatusAddrWriteNack   byte = 0x20
	StatusDataWriteAck    byte = 0x28
	StatusDataWriteNack   byte = 0x30
	StatusArbitrationLost byte = 0x38
	StatusAddrReadAck     byte = 0x40
	StatusAddrReadNack    byte = 0x48
	StatusDataReadAck     byte = 0x50
	StatusDataReadNack    byte = 0x58
	StatusNoInfo          byte = 0xF8
)
