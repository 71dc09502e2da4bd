// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the parley application.
package util

import "strconv"

// IntToString converts an int to string.
func IntToString(i int) string {
	return strconv.Itoa(i)
}

// FloatToString converts a float64 to string with 2 decimal places.
func FloatToString(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// FloatToStringPrec converts a float64 to string with the given decimal
// precision.
func FloatToStringPrec(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// Dollars formats an estimated dollar amount for display. Amounts below
// one cent keep six decimals so heuristic per-message costs stay visible.
func Dollars(amount float64) string {
	if amount != 0 && amount < 0.01 {
		return "$" + strconv.FormatFloat(amount, 'f', 6, 64)
	}
	return "$" + strconv.FormatFloat(amount, 'f', 4, 64)
}
