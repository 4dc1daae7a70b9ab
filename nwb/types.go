// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package nwb

import "time"

const (
	// Version of the NWB schema the written files declare.
	Version = "2.5.0"
	// SeriesName is the name of the LFP electrical series.
	SeriesName = "LFP_data"
	// InterfaceName is the name of the LFP data interface holding the series.
	InterfaceName = "LFP"
	// DefaultProcessingModule is used when the header names no module.
	DefaultProcessingModule = "ecephys"
	// ElectrodeTable is the path of the electrode table.
	ElectrodeTable = "general/extracellular_ephys/electrodes"
	// ElectrodeGroup is the group every electrode belongs to.
	ElectrodeGroup = "electrodes_group"
	// ElectrodeLocation is written as the location of every electrode.
	ElectrodeLocation = "unknown"
)

// Header represents the session level metadata of an NWB file.
type Header struct {
	Identifier            string    // Unique file identifier, a random UUID if empty
	SessionDescription    string    // Description of the session
	SessionStartTime      time.Time // Start of the recording session
	Experimenter          []string  // People who performed the experiment
	Lab                   string    // Lab where the experiment was performed
	Institution           string    // Institution of the lab
	ProcessingModule      string    // Processing module the LFP is attached to
	ProcessingDescription string    // Description of the processing module
}

// SeriesInfo describes the LFP series before any samples are written.
type SeriesInfo struct {
	Electrodes int       // Number of electrode columns
	Timestamps []float64 // Sample times, one per row
	Resolution float64   // Stored as the resolution attribute of the data
}
