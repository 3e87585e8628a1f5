// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

// Normalization selects how summed substitution counts are turned
// into plotted values.
type Normalization int

const (
	// Raw sum of each type's occurrences in the bucket.
	NormalizeNone Normalization = iota
	// Percentage of the bucket's mutation budget (n mutations per
	// sequence times the number of sequences).
	NormalizeByMutationCount
	// Percentage of the occurrences of the reference base in the
	// consensus, averaged over the bucket's sequences.
	NormalizeByBaseComposition
)

var normalizationNames = map[Normalization]string{
	NormalizeNone:              "none",
	NormalizeByMutationCount:   "mut",
	NormalizeByBaseComposition: "base",
}

func (mode Normalization) String() string {
	if s, ok := normalizationNames[mode]; ok {
		return s
	}
	return fmt.Sprintf("Normalization(%d)", int(mode))
}

// ParseNormalization accepts "none", "mut", or "base".
func ParseNormalization(s string) (Normalization, error) {
	for mode, name := range normalizationNames {
		if s == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: normalization %q (must be none, mut, or base)", ErrInvalidConfiguration, s)
}

// BucketRange limits aggregation to buckets Min..Max inclusive.
type BucketRange struct {
	Min int
	Max int
}

// ParseBucketRange parses "min,max" where both are whole numbers.
func ParseBucketRange(s string) (BucketRange, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return BucketRange{}, fmt.Errorf("%w: bucket range %q: expected min,max", ErrInvalidConfiguration, s)
	}
	var r BucketRange
	var err error
	if r.Min, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return BucketRange{}, fmt.Errorf("%w: bucket range %q: %s", ErrInvalidConfiguration, s, err)
	}
	if r.Max, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return BucketRange{}, fmt.Errorf("%w: bucket range %q: %s", ErrInvalidConfiguration, s, err)
	}
	if r.Min > r.Max {
		return BucketRange{}, fmt.Errorf("%w: bucket range %q: min > max", ErrInvalidConfiguration, s)
	}
	return r, nil
}

// AggregatedPoint is the value for one substitution type in one
// bucket.
type AggregatedPoint struct {
	Bucket int
	Type   SubstitutionType
	Value  float64
}

// Aggregate holds, for each substitution type, one point per
// non-empty bucket where that type occurred, in ascending bucket
// order.
type Aggregate [NumSubstitutions][]AggregatedPoint

// Len returns the total number of points.
func (agg *Aggregate) Len() int {
	n := 0
	for _, pts := range agg {
		n += len(pts)
	}
	return n
}

// Aggregate sums each bucket's results by substitution type and
// normalizes the sums according to mode. If r is nil, buckets
// 1..MaxBucket are used. An empty ledger yields an empty Aggregate.
//
// The ledger is not modified.
func (l *MutationLedger) Aggregate(mode Normalization, r *BucketRange) (Aggregate, error) {
	var agg Aggregate
	if _, ok := normalizationNames[mode]; !ok {
		return agg, fmt.Errorf("%w: unknown normalization mode %d", ErrInvalidConfiguration, int(mode))
	}
	lo, hi := 1, l.MaxBucket()
	if r != nil {
		if r.Min > r.Max {
			return agg, fmt.Errorf("%w: bucket range %d..%d is empty", ErrInvalidConfiguration, r.Min, r.Max)
		}
		lo, hi = r.Min, r.Max
	}
	if lo < 0 {
		lo = 0
	}
	for n := lo; n <= hi; n++ {
		bucket := l.Bucket(n)
		if len(bucket) == 0 {
			continue
		}
		var totalByType [NumSubstitutions]int
		grandTotal := 0
		for i := range bucket {
			for k, c := range bucket[i].Counts {
				totalByType[k] += c
				grandTotal += c
			}
		}
		log.Debugf("%s: bucket %d: %d sequences, %d mutations", l.Name, n, len(bucket), grandTotal)
		for k, total := range totalByType {
			if total == 0 {
				continue
			}
			v := float64(total)
			switch mode {
			case NormalizeByMutationCount:
				v = v * 100 / float64(n*len(bucket))
			case NormalizeByBaseComposition:
				v = v * 100 / float64(len(bucket)*l.composition[SubstitutionType(k).Ref()])
			}
			agg[k] = append(agg[k], AggregatedPoint{Bucket: n, Type: SubstitutionType(k), Value: v})
		}
	}
	return agg, nil
}

// AggregateAll aggregates several ledgers concurrently with the same
// mode and range. The returned slice is in the same order as ledgers.
func AggregateAll(ledgers []*MutationLedger, mode Normalization, r *BucketRange) ([]Aggregate, error) {
	aggs := make([]Aggregate, len(ledgers))
	th := throttle{Max: len(ledgers)}
	for i, l := range ledgers {
		i, l := i, l
		th.Go(func() error {
			var err error
			aggs[i], err = l.Aggregate(mode, r)
			return err
		})
	}
	if err := th.Wait(); err != nil {
		return nil, err
	}
	return aggs, nil
}
