// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader reads EDF files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open parses the header of an EDF file.
func Open(r io.ReadSeeker) (*Reader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	b := make([]byte, fixedHeaderBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	hdr := &Header{}
	signalCount, err := hdr.unmarshalFixed(b)
	if err != nil {
		return nil, err
	}

	b = make([]byte, signalCount*signalHeaderBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("error reading signal headers: %w", err)
	}
	if err := hdr.unmarshalSignals(b, signalCount); err != nil {
		return nil, err
	}

	return &Reader{r: r, hdr: hdr}, nil
}

// Header returns the parsed header.
func (er *Reader) Header() Header {
	return *er.hdr
}

// SignalReader reads the samples of one signal, record after record.
type SignalReader struct {
	r             io.ReadSeeker
	hdr           *Header
	signal        *Signal
	recordSize    int64 // Bytes in one data record
	signalOffset  int64 // Byte offset of the signal within a record
	currentRecord int
	buf           []float64 // Unread samples of the current record
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index %d out of range", signalIndex)
	}

	var recordSize, signalOffset int64
	for i, sig := range er.hdr.Signals {
		if i < signalIndex {
			signalOffset += int64(sig.SamplesPerRecord) * 2
		}
		recordSize += int64(sig.SamplesPerRecord) * 2
	}

	return &SignalReader{
		r:            er.r,
		hdr:          er.hdr,
		signal:       &er.hdr.Signals[signalIndex],
		recordSize:   recordSize,
		signalOffset: signalOffset,
	}, nil
}

// Read fills data with physical values and returns io.EOF once every data
// record has been read.
func (sr *SignalReader) Read(data []float64) (int, error) {
	n := 0
	for n < len(data) {
		if len(sr.buf) == 0 {
			if sr.currentRecord >= sr.hdr.DataRecords {
				return n, io.EOF
			}
			if err := sr.readRecord(); err != nil {
				return n, err
			}
		}
		k := copy(data[n:], sr.buf)
		sr.buf = sr.buf[k:]
		n += k
	}
	return n, nil
}

func (sr *SignalReader) readRecord() error {
	pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*sr.recordSize + sr.signalOffset
	if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to position: %w", err)
	}

	raw := make([]byte, sr.signal.SamplesPerRecord*2)
	if _, err := io.ReadFull(sr.r, raw); err != nil {
		return fmt.Errorf("error reading sample data: %w", err)
	}

	sr.buf = make([]float64, sr.signal.SamplesPerRecord)
	for i := range sr.buf {
		digital := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		sr.buf[i] = digitalToPhysical(digital, sr.signal)
	}
	sr.currentRecord++
	return nil
}

// digitalToPhysical converts a digital value to a physical value using the
// calibration of the signal.
func digitalToPhysical(digital int16, s *Signal) float64 {
	if s.DigitalMax == s.DigitalMin {
		return 0
	}
	return s.PhysicalMin + (float64(digital)-float64(s.DigitalMin))*(s.PhysicalMax-s.PhysicalMin)/float64(s.DigitalMax-s.DigitalMin)
}
