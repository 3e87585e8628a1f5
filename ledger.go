// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"bytes"
	"errors"
	"fmt"
)

var ErrConsensusMismatch = errors.New("consensus differs from the one already recorded for this population")

// MutationLedger accumulates classification results for one
// population. buckets[n] holds every result with Total == n.
type MutationLedger struct {
	Name string

	consensus   []byte
	recorded    bool
	composition BaseComposition
	buckets     [][]ClassificationResult
	sequences   int
}

func NewMutationLedger(name string) *MutationLedger {
	return &MutationLedger{Name: name}
}

// RecordBaseComposition fixes the population's consensus and counts
// its bases. Recording the same consensus again is a no-op; a
// different one returns ErrConsensusMismatch and leaves the ledger
// unchanged.
func (l *MutationLedger) RecordBaseComposition(consensus []byte) error {
	if l.recorded {
		if !bytes.Equal(l.consensus, consensus) {
			return fmt.Errorf("%s: %w", l.Name, ErrConsensusMismatch)
		}
		return nil
	}
	if err := checkBases(consensus); err != nil {
		return fmt.Errorf("%s: consensus: %w", l.Name, err)
	}
	var bc BaseComposition
	for _, b := range consensus {
		base, _ := ParseBase(b)
		bc[base]++
	}
	l.consensus = append([]byte(nil), consensus...)
	l.composition = bc
	l.recorded = true
	return nil
}

// Consensus returns the recorded consensus, or nil if none has been
// recorded yet.
func (l *MutationLedger) Consensus() []byte {
	return l.consensus
}

func (l *MutationLedger) BaseComposition() BaseComposition {
	return l.composition
}

// AddResult appends r to bucket r.Total, adding empty buckets as
// needed.
func (l *MutationLedger) AddResult(r ClassificationResult) {
	if need := r.Total + 1 - len(l.buckets); need > 0 {
		l.buckets = append(l.buckets, make([][]ClassificationResult, need)...)
	}
	l.buckets[r.Total] = append(l.buckets[r.Total], r)
	l.sequences++
}

// Merge adds a batch of results (e.g., everything classified from one
// input file) in order.
func (l *MutationLedger) Merge(results []ClassificationResult) {
	for _, r := range results {
		l.AddResult(r)
	}
}

// Bucket returns the results with Total == n. Buckets beyond the
// current extent read as empty.
func (l *MutationLedger) Bucket(n int) []ClassificationResult {
	if n < 0 || n >= len(l.buckets) {
		return nil
	}
	return l.buckets[n]
}

// Len returns the number of buckets, i.e., 1 + the largest mutation
// count seen (0 if nothing has been added).
func (l *MutationLedger) Len() int {
	return len(l.buckets)
}

// MaxBucket returns the index of the last bucket, or -1 if the ledger
// is empty.
func (l *MutationLedger) MaxBucket() int {
	return len(l.buckets) - 1
}

// Sequences returns the number of results held in all buckets.
func (l *MutationLedger) Sequences() int {
	return l.sequences
}

// BucketSizes returns len(Bucket(n)) for each n.
func (l *MutationLedger) BucketSizes() []int {
	sizes := make([]int, len(l.buckets))
	for n, b := range l.buckets {
		sizes[n] = len(b)
	}
	return sizes
}
