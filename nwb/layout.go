// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package nwb

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/hdf5"
)

// attributer is implemented by hdf5 groups and datasets.
type attributer interface {
	CreateAttribute(name string, dtype *hdf5.Datatype, dspace *hdf5.Dataspace) (*hdf5.Attribute, error)
}

// typed marks an object with its NWB neurodata type.
func typed(loc attributer, neurodataType string) error {
	if err := setString(loc, "namespace", "core"); err != nil {
		return err
	}
	if err := setString(loc, "neurodata_type", neurodataType); err != nil {
		return err
	}
	return setString(loc, "object_id", uuid.NewString())
}

func setString(loc attributer, name, value string) error {
	return setAttr(loc, name, hdf5.T_GO_STRING, &value)
}

// setStrings writes values as a one dimensional text attribute.
func setStrings(loc attributer, name string, values []string) error {
	dtype, buf, err := fixedStrings(values)
	if err != nil {
		return err
	}
	defer dtype.Close()

	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(values))}, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	attr, err := loc.CreateAttribute(name, dtype, space)
	if err != nil {
		return fmt.Errorf("error creating attribute %s: %w", name, err)
	}
	defer attr.Close()

	return attr.Write(&buf, dtype)
}

// fixedStrings packs values into a null padded buffer of equal length
// strings and returns the matching datatype.
func fixedStrings(values []string) (*hdf5.Datatype, []byte, error) {
	size := 1
	for _, v := range values {
		size = max(size, len(v))
	}

	dtype, err := hdf5.T_C_S1.Copy()
	if err != nil {
		return nil, nil, err
	}
	if err := dtype.SetSize(uint(size)); err != nil {
		_ = dtype.Close()
		return nil, nil, err
	}

	buf := make([]byte, size*len(values))
	for i, v := range values {
		copy(buf[i*size:], v)
	}
	return dtype, buf, nil
}

func setFloat(loc attributer, name string, value float64) error {
	return setAttr(loc, name, hdf5.T_NATIVE_DOUBLE, &value)
}

func setInt(loc attributer, name string, value int64) error {
	return setAttr(loc, name, hdf5.T_NATIVE_INT64, &value)
}

func setAttr(loc attributer, name string, dtype *hdf5.Datatype, value interface{}) error {
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer space.Close()

	attr, err := loc.CreateAttribute(name, dtype, space)
	if err != nil {
		return fmt.Errorf("error creating attribute %s: %w", name, err)
	}
	defer attr.Close()

	return attr.Write(value, dtype)
}

func (w *Writer) writeString(name, value string) error {
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := w.f.CreateDataset(name, hdf5.T_GO_STRING, space)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	defer dset.Close()

	return dset.Write(&value)
}

func (w *Writer) createGroup(name string, neurodataType string, attrs map[string]string) error {
	g, err := w.f.CreateGroup(name)
	if err != nil {
		return fmt.Errorf("error creating group %s: %w", name, err)
	}
	defer g.Close()

	if neurodataType != "" {
		if err := typed(g, neurodataType); err != nil {
			return err
		}
	}
	for k, v := range attrs {
		if err := setString(g, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeHeader() error {
	root, err := w.f.OpenGroup("/")
	if err != nil {
		return err
	}
	defer root.Close()

	if err := typed(root, "NWBFile"); err != nil {
		return err
	}
	if err := setString(root, "nwb_version", Version); err != nil {
		return err
	}

	start := w.hdr.SessionStartTime.Format(time.RFC3339Nano)
	strs := []struct{ name, value string }{
		{"identifier", w.hdr.Identifier},
		{"session_description", w.hdr.SessionDescription},
		{"session_start_time", start},
		{"timestamps_reference_time", start},
		{"file_create_date", time.Now().Format(time.RFC3339Nano)},
	}
	for _, s := range strs {
		if err := w.writeString(s.name, s.value); err != nil {
			return err
		}
	}

	for _, g := range []string{"acquisition", "analysis", "processing", "stimulus", "stimulus/presentation", "stimulus/templates", "general", "general/extracellular_ephys"} {
		if err := w.createGroup(g, "", nil); err != nil {
			return err
		}
	}

	general := []struct{ name, value string }{
		{"general/experimenter", strings.Join(w.hdr.Experimenter, ", ")},
		{"general/lab", w.hdr.Lab},
		{"general/institution", w.hdr.Institution},
	}
	for _, s := range general {
		if s.value == "" {
			continue
		}
		if err := w.writeString(s.name, s.value); err != nil {
			return err
		}
	}

	return w.createGroup("processing/"+w.hdr.ProcessingModule, "ProcessingModule", map[string]string{
		"description": w.hdr.ProcessingDescription,
	})
}

// createSeries lays out the LFP series under acquisition and under the
// processing module and returns their data datasets, time x electrodes.
func (w *Writer) createSeries(info SeriesInfo) ([]*hdf5.Dataset, error) {
	if w.written {
		return nil, fmt.Errorf("lfp series already written")
	}
	if info.Electrodes < 1 || len(info.Timestamps) == 0 {
		return nil, fmt.Errorf("empty lfp series: %d electrodes, %d timestamps", info.Electrodes, len(info.Timestamps))
	}
	w.written = true

	if err := w.writeElectrodeTable(info.Electrodes); err != nil {
		return nil, err
	}

	var data []*hdf5.Dataset
	for _, parent := range []string{"acquisition", "processing/" + w.hdr.ProcessingModule} {
		dset, err := w.createSeriesAt(parent, info)
		if err != nil {
			closeAll(data)
			return nil, err
		}
		data = append(data, dset)
	}
	return data, nil
}

func (w *Writer) createSeriesAt(parent string, info SeriesInfo) (*hdf5.Dataset, error) {
	iface := parent + "/" + InterfaceName
	if err := w.createGroup(iface, "LFP", nil); err != nil {
		return nil, err
	}
	series := iface + "/" + SeriesName
	if err := w.createGroup(series, "ElectricalSeries", map[string]string{
		"description": "LFP",
		"comments":    "LFP",
	}); err != nil {
		return nil, err
	}

	ts, err := w.createFloat(series+"/timestamps", []uint{uint(len(info.Timestamps))})
	if err != nil {
		return nil, err
	}
	defer ts.Close()
	timestamps := info.Timestamps
	if err := ts.Write(&timestamps); err != nil {
		return nil, fmt.Errorf("error writing timestamps: %w", err)
	}
	if err := setInt(ts, "interval", 1); err != nil {
		return nil, err
	}
	if err := setString(ts, "unit", "seconds"); err != nil {
		return nil, err
	}

	// Rows of the electrode table. Without an object reference to the
	// table this cannot be typed as a DynamicTableRegion.
	region, err := w.createIndex(series+"/electrodes", info.Electrodes)
	if err != nil {
		return nil, err
	}
	defer region.Close()
	if err := setString(region, "description", "rows of "+ElectrodeTable+" recorded by the LFP series"); err != nil {
		return nil, err
	}

	data, err := w.createFloat(series+"/data", []uint{uint(len(info.Timestamps)), uint(info.Electrodes)})
	if err != nil {
		return nil, err
	}
	attrs := []func() error{
		func() error { return setString(data, "unit", "volts") },
		func() error { return setFloat(data, "conversion", 1) },
		func() error { return setFloat(data, "offset", 0) },
		func() error { return setFloat(data, "resolution", info.Resolution) },
	}
	for _, set := range attrs {
		if err := set(); err != nil {
			_ = data.Close()
			return nil, err
		}
	}

	return data, nil
}

// writeElectrodeTable writes the electrode table with one row per
// electrode, all in the default electrode group.
func (w *Writer) writeElectrodeTable(n int) error {
	group := "general/extracellular_ephys/" + ElectrodeGroup
	if err := w.createGroup(group, "ElectrodeGroup", map[string]string{
		"description": "electrodes of the recording",
		"location":    ElectrodeLocation,
	}); err != nil {
		return err
	}

	columns := []struct {
		name, description, value string
	}{
		{"location", "location of the electrode", ElectrodeLocation},
		{"group_name", "name of the electrode group", ElectrodeGroup},
	}

	g, err := w.f.CreateGroup(ElectrodeTable)
	if err != nil {
		return fmt.Errorf("error creating group %s: %w", ElectrodeTable, err)
	}
	defer g.Close()
	if err := typed(g, "DynamicTable"); err != nil {
		return err
	}
	if err := setString(g, "description", "metadata about extracellular electrodes"); err != nil {
		return err
	}
	colnames := make([]string, len(columns))
	for i, c := range columns {
		colnames[i] = c.name
	}
	if err := setStrings(g, "colnames", colnames); err != nil {
		return err
	}

	id, err := w.createIndex(ElectrodeTable+"/id", n)
	if err != nil {
		return err
	}
	defer id.Close()
	if err := typed(id, "ElementIdentifiers"); err != nil {
		return err
	}

	for _, c := range columns {
		values := make([]string, n)
		for i := range values {
			values[i] = c.value
		}
		if err := w.writeTextColumn(ElectrodeTable+"/"+c.name, c.description, values); err != nil {
			return err
		}
	}
	return nil
}

// writeTextColumn writes a text column of a dynamic table.
func (w *Writer) writeTextColumn(name, description string, values []string) error {
	dtype, buf, err := fixedStrings(values)
	if err != nil {
		return err
	}
	defer dtype.Close()

	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(values))}, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := w.f.CreateDataset(name, dtype, space)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	defer dset.Close()

	if err := dset.Write(&buf); err != nil {
		return fmt.Errorf("error writing %s: %w", name, err)
	}
	if err := typed(dset, "VectorData"); err != nil {
		return err
	}
	return setString(dset, "description", description)
}

// createIndex writes the dataset 0..n-1.
func (w *Writer) createIndex(name string, n int) (*hdf5.Dataset, error) {
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(n)}, nil)
	if err != nil {
		return nil, err
	}
	defer space.Close()

	dset, err := w.f.CreateDataset(name, hdf5.T_NATIVE_INT64, space)
	if err != nil {
		return nil, fmt.Errorf("error creating %s: %w", name, err)
	}

	idx := make([]int64, n)
	for i := range idx {
		idx[i] = int64(i)
	}
	if err := dset.Write(&idx); err != nil {
		_ = dset.Close()
		return nil, fmt.Errorf("error writing %s: %w", name, err)
	}

	return dset, nil
}

func (w *Writer) createFloat(name string, dims []uint) (*hdf5.Dataset, error) {
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return nil, err
	}
	defer space.Close()

	dset, err := w.f.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return nil, fmt.Errorf("error creating %s: %w", name, err)
	}
	return dset, nil
}
