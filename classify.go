// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"fmt"
)

// ClassificationResult holds the substitutions found in one candidate
// sequence. Counts[k] is the number of positions where the consensus
// has k.Ref() and the candidate has k.Obs(); zero means absent.
type ClassificationResult struct {
	Counts [NumSubstitutions]int
	Total  int
}

// Types returns the substitution types with a positive count.
func (r *ClassificationResult) Types() []SubstitutionType {
	var ks []SubstitutionType
	for k, n := range r.Counts {
		if n > 0 {
			ks = append(ks, SubstitutionType(k))
		}
	}
	return ks
}

// MalformedSequenceError reports a sequence that cannot be classified:
// either it contains a character other than G, C, A, T, or its length
// differs from the consensus.
type MalformedSequenceError struct {
	Offset    int  // offset of the offending character, or -1 for a length mismatch
	Char      byte // offending character
	Length    int  // candidate length
	Want      int  // consensus length
	Consensus bool // the offending character is in the consensus
}

func (e *MalformedSequenceError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("malformed sequence: length %d does not match consensus length %d", e.Length, e.Want)
	}
	if e.Consensus {
		return fmt.Sprintf("malformed consensus: unexpected char %q at offset %d", e.Char, e.Offset)
	}
	return fmt.Sprintf("malformed sequence: unexpected char %q at offset %d", e.Char, e.Offset)
}

// checkBases returns a *MalformedSequenceError if seq contains
// anything other than G, C, A, T.
func checkBases(seq []byte) error {
	for i, b := range seq {
		if _, ok := ParseBase(b); !ok {
			return &MalformedSequenceError{Offset: i, Char: b, Length: len(seq), Want: len(seq)}
		}
	}
	return nil
}

// Classify compares candidate to consensus position by position.
//
// A candidate with a different length or with any character other
// than G, C, A, T is rejected with a *MalformedSequenceError and
// nothing is counted. A consensus containing any other character is
// reported the same way, with Consensus set.
func Classify(consensus, candidate []byte) (ClassificationResult, error) {
	var res ClassificationResult
	if len(candidate) != len(consensus) {
		return res, &MalformedSequenceError{Offset: -1, Length: len(candidate), Want: len(consensus)}
	}
	if err := checkBases(candidate); err != nil {
		return res, err
	}
	for i, obs := range candidate {
		ref := consensus[i]
		if ref == obs {
			continue
		}
		rb, ok := ParseBase(ref)
		if !ok {
			return ClassificationResult{}, &MalformedSequenceError{Offset: i, Char: ref, Length: len(candidate), Want: len(consensus), Consensus: true}
		}
		ob, _ := ParseBase(obs)
		k, _ := Substitution(rb, ob)
		res.Counts[k]++
		res.Total++
	}
	return res, nil
}
