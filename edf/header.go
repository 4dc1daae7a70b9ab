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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	fixedHeaderBytes  = 256
	signalHeaderBytes = 256
)

// signalField is one column of the signal header block. The block stores
// each field for all signals before moving on to the next field.
type signalField struct {
	name   string
	width  int
	format func(s *Signal) string
	parse  func(s *Signal, v string) error
}

var signalFields = []signalField{
	{"label", 16,
		func(s *Signal) string { return s.Label },
		func(s *Signal, v string) error { s.Label = v; return nil }},
	{"transducer type", 80,
		func(s *Signal) string { return s.TransducerType },
		func(s *Signal, v string) error { s.TransducerType = v; return nil }},
	{"physical dimension", 8,
		func(s *Signal) string { return s.PhysicalDimension },
		func(s *Signal, v string) error { s.PhysicalDimension = v; return nil }},
	{"physical minimum", 8,
		func(s *Signal) string { return formatNumber(s.PhysicalMin, 8) },
		func(s *Signal, v string) (err error) { s.PhysicalMin, err = strconv.ParseFloat(v, 64); return }},
	{"physical maximum", 8,
		func(s *Signal) string { return formatNumber(s.PhysicalMax, 8) },
		func(s *Signal, v string) (err error) { s.PhysicalMax, err = strconv.ParseFloat(v, 64); return }},
	{"digital minimum", 8,
		func(s *Signal) string { return strconv.Itoa(s.DigitalMin) },
		func(s *Signal, v string) (err error) { s.DigitalMin, err = strconv.Atoi(v); return }},
	{"digital maximum", 8,
		func(s *Signal) string { return strconv.Itoa(s.DigitalMax) },
		func(s *Signal, v string) (err error) { s.DigitalMax, err = strconv.Atoi(v); return }},
	{"prefiltering", 80,
		func(s *Signal) string { return s.Prefiltering },
		func(s *Signal, v string) error { s.Prefiltering = v; return nil }},
	{"samples per record", 8,
		func(s *Signal) string { return strconv.Itoa(s.SamplesPerRecord) },
		func(s *Signal, v string) (err error) { s.SamplesPerRecord, err = strconv.Atoi(v); return }},
	{"reserved", 32,
		func(s *Signal) string { return s.Reserved },
		func(s *Signal, v string) error { s.Reserved = v; return nil }},
}

// marshal encodes the header. Fields longer than their slot are truncated.
func (hdr *Header) marshal() []byte {
	var b strings.Builder
	pad := func(v string, width int) {
		if len(v) > width {
			v = v[:width]
		}
		b.WriteString(v)
		b.WriteString(strings.Repeat(" ", width-len(v)))
	}

	pad(string(hdr.Version), 8)
	pad(hdr.PatientID, 80)
	pad(hdr.RecordingID, 80)
	pad(hdr.StartTime.Format("02.01.06"), 8)
	pad(hdr.StartTime.Format("15.04.05"), 8)
	pad(strconv.Itoa(hdr.HeaderBytes), 8)
	pad("", 44)
	pad(strconv.Itoa(hdr.DataRecords), 8)
	pad(formatNumber(hdr.DataRecordDuration.Seconds(), 8), 8)
	pad(strconv.Itoa(len(hdr.Signals)), 4)

	for _, field := range signalFields {
		for i := range hdr.Signals {
			pad(field.format(&hdr.Signals[i]), field.width)
		}
	}

	return []byte(b.String())
}

// unmarshalFixed decodes the first 256 bytes of a header and returns the
// number of signals that follow.
func (hdr *Header) unmarshalFixed(b []byte) (int, error) {
	field := func(from, to int) string { return strings.TrimSpace(string(b[from:to])) }

	hdr.Version = Version(field(0, 8))
	hdr.PatientID = field(8, 88)
	hdr.RecordingID = field(88, 168)

	startDate, err := time.Parse("02.01.06", field(168, 176))
	if err != nil {
		return 0, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", field(176, 184))
	if err != nil {
		return 0, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(field(184, 192)); err != nil {
		return 0, fmt.Errorf("error parsing header bytes: %w", err)
	}
	if hdr.DataRecords, err = strconv.Atoi(field(236, 244)); err != nil {
		return 0, fmt.Errorf("error parsing number of data records: %w", err)
	}
	if hdr.DataRecordDuration, err = time.ParseDuration(field(244, 252) + "s"); err != nil {
		return 0, fmt.Errorf("error parsing data record duration: %w", err)
	}

	signalCount, err := strconv.Atoi(field(252, 256))
	if err != nil {
		return 0, fmt.Errorf("error parsing signal count: %w", err)
	}
	if signalCount < 0 {
		return 0, fmt.Errorf("negative signal count %d", signalCount)
	}
	return signalCount, nil
}

// unmarshalSignals decodes the signal header block.
func (hdr *Header) unmarshalSignals(b []byte, signalCount int) error {
	hdr.Signals = make([]Signal, signalCount)

	off := 0
	for _, field := range signalFields {
		for i := range hdr.Signals {
			v := strings.TrimSpace(string(b[off : off+field.width]))
			if err := field.parse(&hdr.Signals[i], v); err != nil {
				return fmt.Errorf("error parsing %s of signal %d: %w", field.name, i, err)
			}
			off += field.width
		}
	}
	return nil
}

// formatNumber formats v with as many decimals as fit in width characters.
func formatNumber(v float64, width int) string {
	for prec := width; prec > 0; prec-- {
		s := strconv.FormatFloat(v, 'f', prec, 64)
		if len(s) <= width {
			s = strings.TrimRight(s, "0")
			return strings.TrimSuffix(s, ".")
		}
	}
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}
