// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package nlx

import "errors"

var (
	// ErrUnexpectedInput is returned when a field of an electrode file does
	// not have the shape the format prescribes.
	ErrUnexpectedInput = errors.New("unexpected input")
	// ErrInconsistentInput is returned when electrodes of one recording do
	// not share a timebase.
	ErrInconsistentInput = errors.New("inconsistent input")
	// ErrNoElectrodes is returned when none of the electrode files exist.
	ErrNoElectrodes = errors.New("no electrode files found")
	// ErrInvalidTemplate is returned for a file name template without
	// exactly one electrode marker.
	ErrInvalidTemplate = errors.New("invalid file name template")
)
