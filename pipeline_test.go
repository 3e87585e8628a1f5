// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/kshedden/gonpy"
	"gopkg.in/check.v1"
)

type pipelineSuite struct{}

var _ = check.Suite(&pipelineSuite{})

var pipelineInputs = []string{
	"--ctrl", "testdata/ctrl1.fasta", "testdata/ctrl2.fasta",
	"--exp", "testdata/exp1.fasta",
}

func (s *pipelineSuite) TestPlotSeries(c *check.C) {
	tmpdir := c.MkDir()
	args := append([]string{"-local=true", "-render=false", "-ylim=0,100", "-o", tmpdir, "-series-json", tmpdir + "/series.json"}, pipelineInputs...)
	code := (&plotcmd{}).RunCommand("relbase plot", args, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(code, check.Equals, 0)

	buf, err := ioutil.ReadFile(tmpdir + "/series.json")
	c.Assert(err, check.IsNil)
	var input struct {
		Title       string
		XLim        [2]float64
		Populations []struct {
			Name   string
			Marker string
			Series map[string][][3]float64
		}
	}
	c.Assert(json.Unmarshal(buf, &input), check.IsNil)
	c.Check(input.Title, check.Equals, "(RelBase) Mutations per Bucket relative to Count of Origin Base")
	c.Check(input.XLim, check.Equals, [2]float64{1, 5})
	c.Assert(input.Populations, check.HasLen, 2)
	c.Check(input.Populations[0].Name, check.Equals, "ctrl")
	c.Check(input.Populations[0].Series, check.DeepEquals, map[string][][3]float64{
		"G>A": {{1, 25, 2}, {2, 100, 2}},
		"T>C": {{1, 50, 2}},
	})
	c.Check(input.Populations[1].Name, check.Equals, "exp")
	c.Check(input.Populations[1].Series, check.DeepEquals, map[string][][3]float64{
		"G>A": {{1, 50, 2}, {2, 50, 2}},
		"A>G": {{2, 50, 2}},
	})
	c.Check(input.Populations[0].Marker, check.Not(check.Equals), input.Populations[1].Marker)
}

func (s *pipelineSuite) TestPlotOutOfBounds(c *check.C) {
	tmpdir := c.MkDir()
	var stderr bytes.Buffer
	args := append([]string{"-local=true", "-render=false", "-o", tmpdir}, pipelineInputs...)
	code := (&plotcmd{}).RunCommand("relbase plot", args, bytes.NewReader(nil), os.Stderr, &stderr)
	c.Check(code, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `(?ms).*G>A: maximum=100 greater than lim\[1\]=1\.1\n`)

	// same data passes without the bounds check
	args = append([]string{"-local=true", "-render=false", "-check-bounds=false", "-o", tmpdir}, pipelineInputs...)
	code = (&plotcmd{}).RunCommand("relbase plot", args, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Check(code, check.Equals, 0)
}

func (s *pipelineSuite) TestPlotUsage(c *check.C) {
	var stderr bytes.Buffer
	code := (&plotcmd{}).RunCommand("relbase plot", []string{"-local=true", "-normalize=percent", "--ctrl", "testdata/ctrl1.fasta"}, bytes.NewReader(nil), os.Stderr, &stderr)
	c.Check(code, check.Equals, 2)
	c.Check(stderr.String(), check.Matches, `invalid configuration: normalization "percent".*\n`)

	stderr.Reset()
	code = (&plotcmd{}).RunCommand("relbase plot", []string{"-local=true", "-render=false", "stray.fasta"}, bytes.NewReader(nil), os.Stderr, &stderr)
	c.Check(code, check.Equals, 2)
	c.Check(stderr.String(), check.Matches, `errant command line arguments .*\n`)

	stderr.Reset()
	code = (&plotcmd{}).RunCommand("relbase plot", []string{"-local=true", "-render=false"}, bytes.NewReader(nil), os.Stderr, &stderr)
	c.Check(code, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `no input files .*\n`)
}

func (s *pipelineSuite) TestSeries(c *check.C) {
	var stdout bytes.Buffer
	code := (&seriescmd{}).RunCommand("relbase series", []string{"-normalize=mut", "-buckets=1,1", "--exp", "testdata/exp1.fasta"}, bytes.NewReader(nil), &stdout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, `[{"Name":"exp","Normalize":"mut","Series":{"G>A":[[1,100,2]]}}]`+"\n")
}

func (s *pipelineSuite) TestStats(c *check.C) {
	tmpdir := c.MkDir()
	// gzipped input reads the same as plain text
	plain, err := ioutil.ReadFile("testdata/ctrl2.fasta")
	c.Assert(err, check.IsNil)
	f, err := os.Create(tmpdir + "/ctrl2.fasta.gz")
	c.Assert(err, check.IsNil)
	gzw := pgzip.NewWriter(f)
	_, err = gzw.Write(plain)
	c.Assert(err, check.IsNil)
	c.Assert(gzw.Close(), check.IsNil)
	c.Assert(f.Close(), check.IsNil)

	var stdout bytes.Buffer
	code := (&statscmd{}).RunCommand("relbase stats", []string{"-local=true", "--ctrl", "testdata/ctrl1.fasta", tmpdir + "/ctrl2.fasta.gz", "--exp", "testdata/exp1.fasta"}, bytes.NewReader(nil), &stdout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	var stats []struct {
		Name               string
		Files              int
		Sequences          int
		Rejected           int
		ConsensusLength    int
		BaseComposition    map[string]int
		BucketSizes        []int
		SubstitutionTotals map[string]int
		MeanMutations      float64
	}
	c.Assert(json.Unmarshal(stdout.Bytes(), &stats), check.IsNil)
	c.Assert(stats, check.HasLen, 2)
	ctrl := stats[0]
	c.Check(ctrl.Name, check.Equals, "ctrl")
	c.Check(ctrl.Files, check.Equals, 2)
	c.Check(ctrl.Sequences, check.Equals, 4)
	c.Check(ctrl.Rejected, check.Equals, 2)
	c.Check(ctrl.ConsensusLength, check.Equals, 6)
	c.Check(ctrl.BaseComposition, check.DeepEquals, map[string]int{"G": 2, "C": 1, "A": 2, "T": 1})
	c.Check(ctrl.BucketSizes, check.DeepEquals, []int{1, 2, 1})
	c.Check(ctrl.SubstitutionTotals, check.DeepEquals, map[string]int{"G>A": 3, "T>C": 1})
	c.Check(ctrl.MeanMutations, check.Equals, 1.0)
	exp := stats[1]
	c.Check(exp.Sequences, check.Equals, 2)
	c.Check(exp.Rejected, check.Equals, 0)
	c.Check(exp.BucketSizes, check.DeepEquals, []int{0, 1, 1})
}

func (s *pipelineSuite) TestConsensusMismatch(c *check.C) {
	var stderr bytes.Buffer
	code := (&statscmd{}).RunCommand("relbase stats", []string{"-local=true", "--ctrl", "testdata/ctrl1.fasta", "testdata/other.fasta"}, bytes.NewReader(nil), &bytes.Buffer{}, &stderr)
	c.Check(code, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `testdata/other.fasta: ctrl: consensus differs .*\n`)
}

func (s *pipelineSuite) TestExportNumpy(c *check.C) {
	tmpdir := c.MkDir()
	code := (&exportNumpy{}).RunCommand("relbase export-numpy", append([]string{"-output-dir", tmpdir}, pipelineInputs...), bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(code, check.Equals, 0)

	labels, err := ioutil.ReadFile(tmpdir + "/types.csv")
	c.Assert(err, check.IsNil)
	c.Check(strings.Split(string(labels), "\n")[1], check.Equals, `1,"G>A"`)

	f, err := os.Open(tmpdir + "/ctrl.npy")
	c.Assert(err, check.IsNil)
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	c.Assert(err, check.IsNil)
	c.Check(npy.Shape, check.DeepEquals, []int{NumSubstitutions, 3})
	data, err := npy.GetFloat64()
	c.Assert(err, check.IsNil)
	ga, tc := int(mustSub("G>A")), int(mustSub("T>C"))
	c.Check(data[ga*3+0], check.Equals, 0.0)
	c.Check(data[ga*3+1], check.Equals, 25.0)
	c.Check(data[ga*3+2], check.Equals, 100.0)
	c.Check(data[tc*3+1], check.Equals, 50.0)
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	c.Check(sum, check.Equals, 175.0)

	_, err = os.Stat(tmpdir + "/exp.npy")
	c.Check(err, check.IsNil)
}

func (s *pipelineSuite) TestDump(c *check.C) {
	var stdout bytes.Buffer
	code := (&dump{}).RunCommand("relbase dump", pipelineInputs, bytes.NewReader(nil), &stdout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, `ctrl	testdata/ctrl1.fasta	1	s1	1	1G>A
ctrl	testdata/ctrl1.fasta	2	s2	1	6T>C
ctrl	testdata/ctrl1.fasta	3	s3	0	.
ctrl	testdata/ctrl2.fasta	1	s1	2	1G>A;2G>A
exp	testdata/exp1.fasta	1	e1	2	1G>A;3A>G
exp	testdata/exp1.fasta	2	e2	1	1G>A
`)

	stdout.Reset()
	code = (&dump{}).RunCommand("relbase dump", []string{"-merge-runs", "-include-rejected", "--ctrl", "testdata/ctrl2.fasta"}, bytes.NewReader(nil), &stdout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, `ctrl	testdata/ctrl2.fasta	1	s1	2	1_2delinsAA
ctrl	testdata/ctrl2.fasta	2	s2	-	malformed sequence: length 5 does not match consensus length 6
`)
}

func (s *pipelineSuite) TestPlotStyleByPopulation(c *check.C) {
	tmpdir := c.MkDir()
	args := []string{"-local=true", "-render=false", "-check-bounds=false", "-o", tmpdir, "-series-json", tmpdir + "/series.json",
		"--pop=wt", "testdata/exp1.fasta",
		"--exp", "testdata/exp1.fasta",
		"--ctrl", "testdata/ctrl1.fasta",
	}
	code := (&plotcmd{}).RunCommand("relbase plot", args, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(code, check.Equals, 0)
	buf, err := ioutil.ReadFile(tmpdir + "/series.json")
	c.Assert(err, check.IsNil)
	var input struct {
		Populations []struct {
			Name   string
			Color  string
			Marker string
		}
	}
	c.Assert(json.Unmarshal(buf, &input), check.IsNil)
	c.Assert(input.Populations, check.HasLen, 3)
	c.Check(input.Populations[0].Name, check.Equals, "ctrl")
	c.Check(input.Populations[0].Color, check.Equals, "#b0b0b0")
	c.Check(input.Populations[0].Marker, check.Equals, "o")
	c.Check(input.Populations[1].Name, check.Equals, "exp")
	c.Check(input.Populations[1].Color, check.Equals, "black")
	c.Check(input.Populations[1].Marker, check.Equals, "*")
	c.Check(input.Populations[2].Name, check.Equals, "wt")
	c.Check(input.Populations[2].Color, check.Equals, "tab:red")
}

func (s *pipelineSuite) TestSeriesFractionalBuckets(c *check.C) {
	var stderr bytes.Buffer
	code := (&seriescmd{}).RunCommand("relbase series", []string{"-buckets=1.5,2.9", "--exp", "testdata/exp1.fasta"}, bytes.NewReader(nil), &bytes.Buffer{}, &stderr)
	c.Check(code, check.Equals, 2)
	c.Check(stderr.String(), check.Matches, `invalid configuration: bucket range "1.5,2.9": .*\n`)
}

func (s *pipelineSuite) TestSoftMaskedDump(c *check.C) {
	var stdout bytes.Buffer
	code := (&dump{}).RunCommand("relbase dump", []string{"-include-rejected", "--ctrl", "testdata/softmasked.fasta"}, bytes.NewReader(nil), &stdout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, `ctrl	testdata/softmasked.fasta	1	soft	-	malformed sequence: unexpected char 'a' at offset 0
ctrl	testdata/softmasked.fasta	2	hard	1	1G>A
`)
}
