// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package twi drives the two-wire serial interface (TWI) master found on
// AVR class microcontrollers and exposes it as a periph i²c bus.
//
// The controller works at the transaction level: Begin asserts a START
// condition and sends the 7-bit address with the direction bit, Transmit and
// Receive move one byte with its acknowledge, and Stop releases the bus. Tx
// composes these into a complete i2c.Bus transaction so that any periph
// device driver can run on top of it.
//
// Register access goes through the Registers interface. On hardware it is a
// thin memory-mapped accessor; package twitest provides a behavioural model
// for tests and host side development.
//
// Every wait on the peripheral is bounded by Opts.Timeout. A stalled bus
// reports ErrBusTimeout instead of blocking forever. Nothing is retried
// automatically; callers decide what to do on ErrNoAck or ErrArbitrationLost.
//
// # Datasheet
//
// ATmega328P, chapter 21 "2-wire Serial Interface":
//
// https://ww1.microchip.com/downloads/en/DeviceDoc/Atmel-7810-Automotive-Microcontrollers-ATmega328P_Datasheet.pdf
package twi
