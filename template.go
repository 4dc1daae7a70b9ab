// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package nlx

import (
	"fmt"
	"strconv"
	"strings"
)

// FileNumMarker is replaced by the 1-based electrode index in a Template.
const FileNumMarker = "_FILENUM_"

// Template names the file of every electrode of a recording,
// e.g. "/data/CSC_FILENUM_.mat".
type Template struct {
	prefix string
	suffix string
	parsed bool
}

// ParseTemplate parses a path containing FileNumMarker exactly once.
func ParseTemplate(s string) (Template, error) {
	parts := strings.Split(s, FileNumMarker)
	if len(parts) != 2 {
		return Template{}, fmt.Errorf("%w: %q must contain %s exactly once", ErrInvalidTemplate, s, FileNumMarker)
	}
	return Template{prefix: parts[0], suffix: parts[1], parsed: true}, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(s string) Template {
	t, err := ParseTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Path returns the file path of the given 1-based electrode.
func (t Template) Path(electrode int) string {
	return t.prefix + strconv.Itoa(electrode) + t.suffix
}

// String returns the template in its marker form.
func (t Template) String() string {
	return t.prefix + FileNumMarker + t.suffix
}

// IsZero reports whether the template was never parsed.
func (t Template) IsZero() bool {
	return !t.parsed
}
