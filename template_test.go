// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package nlx_test

import (
	"testing"

	"github.com/OpenPSG/nlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate(t *testing.T) {
	tmpl, err := nlx.ParseTemplate("/data/CSC_FILENUM_.mat")
	require.NoError(t, err)

	assert.Equal(t, "/data/CSC1.mat", tmpl.Path(1))
	assert.Equal(t, "/data/CSC120.mat", tmpl.Path(120))
	assert.Equal(t, "/data/CSC_FILENUM_.mat", tmpl.String())
	assert.False(t, tmpl.IsZero())

	tmpl, err = nlx.ParseTemplate("_FILENUM_")
	require.NoError(t, err)
	assert.Equal(t, "7", tmpl.Path(7))

	for _, s := range []string{"", "/data/CSC.mat", "/data/_FILENUM_/CSC_FILENUM_.mat"} {
		_, err := nlx.ParseTemplate(s)
		assert.ErrorIs(t, err, nlx.ErrInvalidTemplate, s)
	}
}

func TestTemplateZero(t *testing.T) {
	var tmpl nlx.Template
	assert.True(t, tmpl.IsZero())
	assert.False(t, nlx.MustParseTemplate("_FILENUM_").IsZero())
	assert.Panics(t, func() { nlx.MustParseTemplate("CSC.mat") })
}
