// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package nwb_test

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OpenPSG/nlx"
	"github.com/OpenPSG/nlx/nwb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/hdf5"
)

func testHeader() nwb.Header {
	return nwb.Header{
		SessionDescription: "free viewing",
		SessionStartTime:   time.Date(2019, 3, 4, 10, 30, 0, 0, time.UTC),
		Experimenter:       []string{"A. Experimenter"},
		Lab:                "Buffalo Lab",
		Institution:        "University of Washington",
	}
}

func testLFP() *nlx.LFP {
	lfp := nlx.NewLFP(3, 2)
	copy(lfp.Row(0), []float64{1, 2})
	copy(lfp.Row(2), []float64{7, 8})
	lfp.Timestamps = []float64{0.001, 0.002}
	lfp.SamplingRate = 32000
	lfp.LFPRate = 1000
	lfp.Missing = []int{2}
	return lfp
}

// readData reads a float dataset and returns its dims and values.
func readData(t *testing.T, path, name string) ([]uint, []float64) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()

	dset, err := f.OpenDataset(name)
	require.NoError(t, err)
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	require.NoError(t, err)

	data := make([]float64, space.SimpleExtentNPoints())
	require.NoError(t, dset.Read(&data))
	return dims, data
}

func assertSeries(t *testing.T, path, module string) {
	t.Helper()

	for _, parent := range []string{"acquisition", "processing/" + module} {
		series := parent + "/" + nwb.InterfaceName + "/" + nwb.SeriesName

		dims, data := readData(t, path, series+"/data")
		assert.Equal(t, []uint{2, 3}, dims)
		// time x electrodes
		assert.Equal(t, 1.0, data[0])
		assert.True(t, math.IsNaN(data[1]))
		assert.Equal(t, 7.0, data[2])
		assert.Equal(t, 2.0, data[3])
		assert.True(t, math.IsNaN(data[4]))
		assert.Equal(t, 8.0, data[5])

		_, ts := readData(t, path, series+"/timestamps")
		assert.Equal(t, []float64{0.001, 0.002}, ts)
	}
}

func TestWriteLFP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.nwb")

	w, err := nwb.Create(path, testHeader())
	require.NoError(t, err)
	assert.NotEmpty(t, w.Header().Identifier)
	assert.Equal(t, nwb.DefaultProcessingModule, w.Header().ProcessingModule)

	require.NoError(t, w.WriteLFP(testLFP()))

	// Only one LFP series per file.
	assert.Error(t, w.WriteLFP(testLFP()))
	require.NoError(t, w.Close())

	assertSeries(t, path, nwb.DefaultProcessingModule)

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()
	for _, name := range []string{
		"identifier",
		"session_description",
		"session_start_time",
		"general/lab",
		nwb.ElectrodeTable + "/id",
		nwb.ElectrodeTable + "/location",
		nwb.ElectrodeTable + "/group_name",
		"general/extracellular_ephys/" + nwb.ElectrodeGroup,
		"acquisition/LFP/LFP_data/electrodes",
	} {
		assert.True(t, f.LinkExists(name), name)
	}

	table, err := f.OpenGroup(nwb.ElectrodeTable)
	require.NoError(t, err)
	defer table.Close()
	colnames, err := table.OpenAttribute("colnames")
	require.NoError(t, err)
	require.NoError(t, colnames.Close())

	// One fixed length location per electrode.
	location, err := f.OpenDataset(nwb.ElectrodeTable + "/location")
	require.NoError(t, err)
	defer location.Close()
	buf := make([]byte, 3*len(nwb.ElectrodeLocation))
	require.NoError(t, location.Read(&buf))
	assert.Equal(t, strings.Repeat(nwb.ElectrodeLocation, 3), string(buf))

	// The series electrodes are plain row indices.
	region, err := f.OpenDataset("acquisition/LFP/LFP_data/electrodes")
	require.NoError(t, err)
	defer region.Close()
	_, err = region.OpenAttribute("neurodata_type")
	assert.Error(t, err)
	desc, err := region.OpenAttribute("description")
	require.NoError(t, err)
	require.NoError(t, desc.Close())
}

func TestBeginLFP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.nwb")

	hdr := testHeader()
	hdr.ProcessingModule = "lfp"
	w, err := nwb.Create(path, hdr)
	require.NoError(t, err)

	lfp := testLFP()
	sw, err := w.BeginLFP(nwb.SeriesInfo{
		Electrodes: lfp.Electrodes,
		Timestamps: lfp.Timestamps,
		Resolution: lfp.SamplingRate,
	})
	require.NoError(t, err)

	require.NoError(t, sw.WriteElectrode(1, lfp.Row(0)))
	require.NoError(t, sw.WriteElectrode(3, lfp.Row(2)))
	assert.Error(t, sw.WriteElectrode(4, lfp.Row(2)))
	assert.Error(t, sw.WriteElectrode(1, []float64{1}))

	// Electrode 2 is never written and is filled with NaN on close.
	require.NoError(t, sw.Close())
	require.NoError(t, w.Close())

	assertSeries(t, path, "lfp")
}

func TestSeriesWriterAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.nwb")

	w, err := nwb.Create(path, testHeader())
	require.NoError(t, err)

	lfp := testLFP()
	sw, err := w.BeginLFP(nwb.SeriesInfo{
		Electrodes: lfp.Electrodes,
		Timestamps: lfp.Timestamps,
		Resolution: lfp.SamplingRate,
	})
	require.NoError(t, err)
	require.NoError(t, sw.WriteElectrode(1, lfp.Row(0)))

	// Unwritten columns keep the fill value instead of NaN.
	require.NoError(t, sw.Abort())
	require.NoError(t, w.Close())

	_, data := readData(t, path, "acquisition/LFP/LFP_data/data")
	assert.Equal(t, 1.0, data[0])
	assert.Equal(t, 0.0, data[1])
	assert.Equal(t, 0.0, data[2])
}
