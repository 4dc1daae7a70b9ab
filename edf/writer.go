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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	recordBytes int
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	if hdr.Version == "" {
		hdr.Version = Version0
	}
	hdr.HeaderBytes = fixedHeaderBytes + len(hdr.Signals)*signalHeaderBytes
	hdr.DataRecords = -1 // Unknown until Close.

	var samples int
	for _, s := range hdr.Signals {
		if s.SamplesPerRecord < 1 {
			return nil, fmt.Errorf("signal %q has no samples per record", s.Label)
		}
		if s.DigitalMin >= s.DigitalMax || s.DigitalMin < DigitalMin || s.DigitalMax > DigitalMax {
			return nil, fmt.Errorf("signal %q has invalid digital range [%d, %d]", s.Label, s.DigitalMin, s.DigitalMax)
		}
		samples += s.SamplesPerRecord
	}
	// As recommended by the EDF standard.
	if samples*2 > MaxRecordBytes {
		return nil, fmt.Errorf("data record too large: %d bytes, max is %d bytes", samples*2, MaxRecordBytes)
	}

	ew := &Writer{w: w, hdr: &hdr, recordBytes: samples * 2}
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	_, err := ew.w.Seek(0, io.SeekEnd)
	return err
}

// WriteRecord writes a single data record. NaN samples are stored as the
// signal's digital minimum.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != len(ew.hdr.Signals) {
		return fmt.Errorf("expected %d signals, got %d", len(ew.hdr.Signals), len(signals))
	}
	for i, samples := range signals {
		if want := ew.hdr.Signals[i].SamplesPerRecord; len(samples) != want {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, want, len(samples))
		}
	}

	if _, err := ew.w.Seek(int64(ew.hdr.HeaderBytes)+int64(ew.dataRecords)*int64(ew.recordBytes), io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to record: %w", err)
	}

	writer := bufio.NewWriter(ew.w)
	buf := make([]byte, 2)
	for i, samples := range signals {
		signal := &ew.hdr.Signals[i]
		for _, sample := range samples {
			binary.LittleEndian.PutUint16(buf, uint16(physicalToDigital(sample, signal)))
			if _, err := writer.Write(buf); err != nil {
				return err
			}
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := ew.w.Write(ew.hdr.marshal())
	return err
}

// physicalToDigital converts a physical value to a digital value using the
// calibration of the signal, clamping to its digital range.
func physicalToDigital(physical float64, s *Signal) int16 {
	if math.IsNaN(physical) || s.PhysicalMax == s.PhysicalMin {
		return int16(s.DigitalMin)
	}
	digital := (physical-s.PhysicalMin)*float64(s.DigitalMax-s.DigitalMin)/(s.PhysicalMax-s.PhysicalMin) + float64(s.DigitalMin)
	digital = math.Round(digital)
	digital = math.Max(digital, float64(s.DigitalMin))
	digital = math.Min(digital, float64(s.DigitalMax))
	return int16(digital)
}
