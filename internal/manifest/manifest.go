// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package manifest records conversion runs and the outcome of every
// electrode file they touched.
package manifest

import (
	"context"
	"time"
)

// Run modes.
const (
	ModeEager  = "eager"
	ModeStream = "stream"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one conversion.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Template   string
	Electrodes int
	Mode       string
	Output     string
	Status     string
	Error      string
}

// Electrode is the outcome of one electrode file of a run.
type Electrode struct {
	Electrode int
	Path      string
	Present   bool
}

// Recorder persists conversion runs.
type Recorder interface {
	RecordRun(ctx context.Context, run Run, electrodes []Electrode) error
	Close() error
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

// NewNoopRecorder returns a Recorder that records nothing.
func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

// RecordRun discards the run.
func (NoopRecorder) RecordRun(context.Context, Run, []Electrode) error { return nil }

// Close does nothing.
func (NoopRecorder) Close() error { return nil }
