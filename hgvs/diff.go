// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package hgvs describes differences between equal-length, aligned
// sequences in HGVS notation.
package hgvs

import (
	"fmt"
)

// Variant is a substitution of Ref by New starting at 1-based
// Position. Ref and New always have the same length and differ at
// every position.
type Variant struct {
	Position int
	Ref      string
	New      string
}

func (v *Variant) String() string {
	if len(v.Ref) == 1 {
		return fmt.Sprintf("%d%s>%s", v.Position, v.Ref, v.New)
	}
	return fmt.Sprintf("%d_%ddelins%s", v.Position, v.Position+len(v.Ref)-1, v.New)
}

// Diff compares a and b position by position and returns one Variant
// per run of adjacent mismatches: a single mismatch is reported as
// "5A>C", a run as "3_5delinsCCC". Sequences of different length are
// an error; no alignment is attempted.
func Diff(a, b string) ([]Variant, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("cannot diff sequences of different length (%d, %d)", len(a), len(b))
	}
	var variants []Variant
	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			continue
		}
		end := i + 1
		for end < len(a) && a[end] != b[end] {
			end++
		}
		variants = append(variants, Variant{Position: i + 1, Ref: a[i:end], New: b[i:end]})
		i = end
	}
	return variants, nil
}

// SNVs is like Diff, but reports each mismatched position separately.
func SNVs(a, b string) ([]Variant, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("cannot diff sequences of different length (%d, %d)", len(a), len(b))
	}
	var variants []Variant
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			variants = append(variants, Variant{Position: i + 1, Ref: a[i : i+1], New: b[i : i+1]})
		}
	}
	return variants, nil
}
