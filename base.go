// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"fmt"
	"strings"
)

// Base is one of the four nucleotides, numbered in display order
// (G, C, A, T).
type Base uint8

const (
	G Base = iota
	C
	A
	T
	NumBases = 4
)

const baseLetters = "GCAT"

var baseOf = func() [256]int8 {
	var r [256]int8
	for i := range r {
		r[i] = -1
	}
	for i := 0; i < NumBases; i++ {
		r[baseLetters[i]] = int8(i)
	}
	return r
}()

// ParseBase returns the Base for an uppercase letter. ok is false for
// anything outside G, C, A, T (including N and lowercase).
func ParseBase(b byte) (base Base, ok bool) {
	if i := baseOf[b]; i >= 0 {
		return Base(i), true
	}
	return 0, false
}

func (b Base) String() string {
	if int(b) >= NumBases {
		return fmt.Sprintf("Base(%d)", uint8(b))
	}
	return baseLetters[b : b+1]
}

// Bases returns all bases in display order.
func Bases() []Base {
	return []Base{G, C, A, T}
}

// SubstitutionType identifies an ordered (reference, observed) pair
// of distinct bases. The 12 values are numbered row-major over
// (ref, obs) in display order with the diagonal left out, so G>C is
// 0 and T>A is 11.
type SubstitutionType uint8

const NumSubstitutions = NumBases * (NumBases - 1)

// Substitution returns the SubstitutionType for ref>obs. ok is false
// if ref == obs.
func Substitution(ref, obs Base) (k SubstitutionType, ok bool) {
	if ref == obs || ref >= NumBases || obs >= NumBases {
		return 0, false
	}
	col := obs
	if obs > ref {
		col--
	}
	return SubstitutionType(ref*(NumBases-1) + col), true
}

func (k SubstitutionType) Ref() Base {
	return Base(k / (NumBases - 1))
}

func (k SubstitutionType) Obs() Base {
	ref := k.Ref()
	obs := Base(k % (NumBases - 1))
	if obs >= ref {
		obs++
	}
	return obs
}

// String returns the "G>A" form used in plot titles.
func (k SubstitutionType) String() string {
	if k >= NumSubstitutions {
		return fmt.Sprintf("SubstitutionType(%d)", uint8(k))
	}
	return k.Ref().String() + ">" + k.Obs().String()
}

// Code returns the two-letter "GA" form used in filenames.
func (k SubstitutionType) Code() string {
	return k.Ref().String() + k.Obs().String()
}

// ParseSubstitution accepts "GA" or "G>A".
func ParseSubstitution(s string) (SubstitutionType, error) {
	code := strings.Replace(strings.ToUpper(s), ">", "", 1)
	if len(code) == 2 {
		ref, ok1 := ParseBase(code[0])
		obs, ok2 := ParseBase(code[1])
		if ok1 && ok2 {
			if k, ok := Substitution(ref, obs); ok {
				return k, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid substitution type %q", s)
}

// SubstitutionTypes returns all 12 types in index order.
func SubstitutionTypes() []SubstitutionType {
	ks := make([]SubstitutionType, NumSubstitutions)
	for i := range ks {
		ks[i] = SubstitutionType(i)
	}
	return ks
}

// BaseComposition counts occurrences of each base in a consensus
// sequence.
type BaseComposition [NumBases]int

func (bc BaseComposition) Total() int {
	n := 0
	for _, c := range bc {
		n += c
	}
	return n
}

// MarshalJSON reports the composition as {"G":n,"C":n,"A":n,"T":n}.
func (bc BaseComposition) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"G":%d,"C":%d,"A":%d,"T":%d}`, bc[G], bc[C], bc[A], bc[T])), nil
}
