// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"errors"

	"gopkg.in/check.v1"
)

type seriesSuite struct{}

var _ = check.Suite(&seriesSuite{})

func (s *seriesSuite) TestRoundTrip(c *check.C) {
	l := ledgerFor(c, "exp", "GGAA", "AGAA", "GGAC", "AAAA", "AGAC", "TTTT")
	agg, err := l.Aggregate(NormalizeByBaseComposition, nil)
	c.Assert(err, check.IsNil)
	series := ToSeries(agg)
	n := 0
	for k, pts := range series {
		c.Assert(pts, check.HasLen, len(agg[k]))
		for i, p := range pts {
			c.Check(p.X, check.Equals, float64(agg[k][i].Bucket))
			c.Check(p.Y, check.Equals, agg[k][i].Value)
			c.Check(p.Weight, check.Equals, float64(MarkerWeight))
			n++
		}
	}
	c.Check(n, check.Equals, agg.Len())
}

func (s *seriesSuite) TestWindow(c *check.C) {
	var series Series
	k := mustSub("G>A")
	for x := 0; x <= 6; x++ {
		series[k] = append(series[k], Point{X: float64(x), Y: 0.5, Weight: MarkerWeight})
	}
	w := series.Window(Range{1, 5})
	c.Check(w[k], check.HasLen, 5)
	c.Check(w[k][0].X, check.Equals, 1.0)
	c.Check(w[k][4].X, check.Equals, 5.0)
	c.Check(series[k], check.HasLen, 7)
}

func (s *seriesSuite) TestJSON(c *check.C) {
	var series Series
	series[mustSub("T>C")] = []Point{{X: 2, Y: 0.25, Weight: MarkerWeight}}
	buf, err := series.MarshalJSON()
	c.Assert(err, check.IsNil)
	c.Check(string(buf), check.Equals, `{"T>C":[[2,0.25,2]]}`)
}

func (s *seriesSuite) TestParseRange(c *check.C) {
	r, err := ParseRange("0, 1.1")
	c.Check(err, check.IsNil)
	c.Check(r, check.Equals, Range{0, 1.1})
	c.Check(r.String(), check.Equals, "0,1.1")
	for _, in := range []string{"", "1", "1,2,3", "a,2", "2,1"} {
		_, err = ParseRange(in)
		c.Check(errors.Is(err, ErrInvalidConfiguration), check.Equals, true, check.Commentf("%q", in))
	}
	c.Check(r.Set("1,5"), check.IsNil)
	c.Check(r, check.Equals, Range{1, 5})
}

func (s *seriesSuite) TestCheckBounds(c *check.C) {
	var ctrl, exp Series
	ga, tc := mustSub("G>A"), mustSub("T>C")
	ctrl[ga] = []Point{{X: 1, Y: 0.2}, {X: 2, Y: 0.9}}
	exp[ga] = []Point{{X: 1, Y: 0.4}}
	exp[tc] = []Point{{X: 3, Y: 1.05}}
	c.Check(CheckBounds(Range{0, 1.1}, ctrl, exp), check.IsNil)

	err := CheckBounds(Range{0, 1}, ctrl, exp)
	var oor *OutOfRangeError
	c.Assert(errors.As(err, &oor), check.Equals, true)
	c.Check(oor.Type, check.Equals, tc)
	c.Check(oor.Max, check.Equals, 1.05)
	c.Check(err, check.ErrorMatches, `T>C: maximum=1.05 greater than lim\[1\]=1`)

	err = CheckBounds(Range{0.3, 2}, ctrl, exp)
	c.Assert(errors.As(err, &oor), check.Equals, true)
	c.Check(oor.Type, check.Equals, ga)
	c.Check(oor.Min, check.Equals, 0.2)
	c.Check(err, check.ErrorMatches, `G>A: minimum=0.2 less than lim\[0\]=0.3`)

	c.Check(CheckBounds(Range{5, 6}), check.IsNil)
}
