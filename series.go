// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// MarkerWeight is the weight given to every plotted point. The
// renderer turns it into a marker size.
const MarkerWeight = 2

type Point struct {
	X      float64
	Y      float64
	Weight float64
}

// Series holds plottable points for each substitution type, in
// ascending X order.
type Series [NumSubstitutions][]Point

// ToSeries reshapes an Aggregate into plot points (x=bucket,
// y=value).
func ToSeries(agg Aggregate) Series {
	var s Series
	for k, pts := range agg {
		if len(pts) == 0 {
			continue
		}
		s[k] = make([]Point, len(pts))
		for i, p := range pts {
			s[k][i] = Point{X: float64(p.Bucket), Y: p.Value, Weight: MarkerWeight}
		}
	}
	return s
}

// Window returns a copy of s without the points whose X is outside
// xlim.
func (s Series) Window(xlim Range) Series {
	var out Series
	for k, pts := range s {
		for _, p := range pts {
			if p.X >= xlim.Min && p.X <= xlim.Max {
				out[k] = append(out[k], p)
			}
		}
	}
	return out
}

// MarshalJSON encodes s as {"G>C": [[x,y,w],...], ...}, omitting types
// with no points.
func (s Series) MarshalJSON() ([]byte, error) {
	m := map[string][][3]float64{}
	for k, pts := range s {
		if len(pts) == 0 {
			continue
		}
		xyw := make([][3]float64, len(pts))
		for i, p := range pts {
			xyw[i] = [3]float64{p.X, p.Y, p.Weight}
		}
		m[SubstitutionType(k).String()] = xyw
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Range is a closed interval on a plot axis.
type Range struct {
	Min float64
	Max float64
}

func (r Range) String() string {
	return fmt.Sprintf("%g,%g", r.Min, r.Max)
}

// ParseRange parses "min,max".
func ParseRange(s string) (Range, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: range %q: expected min,max", ErrInvalidConfiguration, s)
	}
	var r Range
	var err error
	if r.Min, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return Range{}, fmt.Errorf("%w: range %q: %s", ErrInvalidConfiguration, s, err)
	}
	if r.Max, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return Range{}, fmt.Errorf("%w: range %q: %s", ErrInvalidConfiguration, s, err)
	}
	if r.Min > r.Max {
		return Range{}, fmt.Errorf("%w: range %q: min > max", ErrInvalidConfiguration, s)
	}
	return r, nil
}

// Set and String make *Range usable as a flag.Value.
func (r *Range) Set(s string) error {
	parsed, err := ParseRange(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// OutOfRangeError reports an aggregated value that would fall outside
// the declared y axis of a plot.
type OutOfRangeError struct {
	Type  SubstitutionType
	Value float64 // the offending value (Min or Max)
	Min   float64 // smallest y value for Type
	Max   float64 // largest y value for Type
	Bound Range
}

func (e *OutOfRangeError) Error() string {
	if e.Value < e.Bound.Min {
		return fmt.Sprintf("%s: minimum=%g less than lim[0]=%g", e.Type, e.Value, e.Bound.Min)
	}
	return fmt.Sprintf("%s: maximum=%g greater than lim[1]=%g", e.Type, e.Value, e.Bound.Max)
}

// CheckBounds returns an *OutOfRangeError for the first substitution
// type (in index order) whose y values, taken over all of the given
// series together, do not fit in ylim. Nothing is clamped.
func CheckBounds(ylim Range, series ...Series) error {
	for k := 0; k < NumSubstitutions; k++ {
		var ys []float64
		for _, s := range series {
			for _, p := range s[k] {
				ys = append(ys, p.Y)
			}
		}
		if len(ys) == 0 {
			continue
		}
		min, max := floats.Min(ys), floats.Max(ys)
		if min < ylim.Min {
			return &OutOfRangeError{Type: SubstitutionType(k), Value: min, Min: min, Max: max, Bound: ylim}
		}
		if max > ylim.Max {
			return &OutOfRangeError{Type: SubstitutionType(k), Value: max, Min: min, Max: max, Bound: ylim}
		}
	}
	return nil
}
