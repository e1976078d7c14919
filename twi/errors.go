// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package twi

import (
	"errors"
	"fmt"
)

var (
	// ErrRateUnreachable is returned by Init when the bus clock cannot be
	// divided down to the requested rate with an 8 bit divisor.
	ErrRateUnreachable = errors.New("rate unreachable")
	// ErrArbitrationLost means another master won the bus.
	ErrArbitrationLost = errors.New("arbitration lost")
	// ErrNoAck means the target did not acknowledge its address or a byte.
	ErrNoAck = errors.New("no acknowledge")
	// ErrFraming means the status after a read did not match the requested
	// acknowledge policy.
	ErrFraming = errors.New("framing error")
	// ErrBusTimeout means the peripheral did not complete within
	// Opts.Timeout.
	ErrBusTimeout = errors.New("bus timeout")
	// ErrInvalidAddress is returned for addresses outside [1, 126].
	ErrInvalidAddress = errors.New("invalid address")
	// ErrNotInitialized is returned when the controller is used before Init.
	ErrNotInitialized = errors.New("not initialized")
	// ErrNoTransaction is returned by byte transfers outside a transaction.
	ErrNoTransaction = errors.New("no open transaction")
)

// BusError describes a failed bus operation.
type BusError struct {
	Op     string
	Addr   uint16
	Status byte
	Err    error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("twi: %s 0x%02X: %v (status 0x%02X)", e.Op, e.Addr, e.Err, e.Status)
}

func (e *BusError) Unwrap() error {
	return e.Err
}
