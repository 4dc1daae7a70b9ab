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
	"math"
)

// Scalar extracts the single value of a field stored as a 1x1 matrix.
func Scalar(a Array) (float64, error) {
	if len(a.Shape) != 2 || a.Shape[0] != 1 {
		return 0, fmt.Errorf("%w: scalar has shape %v, want [1 1]", ErrUnexpectedInput, a.Shape)
	}
	if a.Shape[1] != 1 || len(a.Data) != 1 {
		return 0, fmt.Errorf("%w: scalar row has length %d, want 1", ErrUnexpectedInput, a.Shape[1])
	}
	return a.Data[0], nil
}

// ScalarInt is Scalar for fields that hold a whole number.
func ScalarInt(a Array) (int, error) {
	v, err := Scalar(a)
	if err != nil {
		return 0, err
	}
	return toInt(v)
}

// Pair extracts a 2x1 column as an ordered pair.
func Pair(a Array) (int, int, error) {
	if len(a.Shape) == 0 || a.Shape[0] != 2 || a.Len() != 2 || len(a.Data) != 2 {
		return 0, 0, fmt.Errorf("%w: pair has shape %v, want [2 1]", ErrUnexpectedInput, a.Shape)
	}
	first, err := toInt(a.Data[0])
	if err != nil {
		return 0, 0, err
	}
	second, err := toInt(a.Data[1])
	if err != nil {
		return 0, 0, err
	}
	return first, second, nil
}

func toInt(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %v is not a whole number", ErrUnexpectedInput, v)
	}
	return int(v), nil
}
