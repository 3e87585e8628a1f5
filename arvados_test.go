// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"io/ioutil"

	"gopkg.in/check.v1"
)

type arvadosSuite struct{}

var _ = check.Suite(&arvadosSuite{})

func (s *arvadosSuite) TestTranslatePaths(c *check.C) {
	var runner arvadosContainerRunner
	pdhPath := "/keep/d41d8cd98f00b204e9800998ecf8427e+0/ctrl/Ctrl_1.fasta"
	uuidPath := "/home/user/keep/by_id/zzzzz-4zz18-0123456789abcde/Brca2_1.fasta.gz"
	stdout := "-"
	c.Assert(runner.TranslatePaths(&pdhPath, &uuidPath, &stdout), check.IsNil)
	c.Check(pdhPath, check.Equals, "/mnt/d41d8cd98f00b204e9800998ecf8427e+0/ctrl/Ctrl_1.fasta")
	c.Check(uuidPath, check.Equals, "/mnt/zzzzz-4zz18-0123456789abcde/Brca2_1.fasta.gz")
	c.Check(stdout, check.Equals, "-")
	c.Check(runner.Mounts["/mnt/d41d8cd98f00b204e9800998ecf8427e+0"]["portable_data_hash"], check.Equals, "d41d8cd98f00b204e9800998ecf8427e+0")
	c.Check(runner.Mounts["/mnt/zzzzz-4zz18-0123456789abcde"]["uuid"], check.Equals, "zzzzz-4zz18-0123456789abcde")

	local := "testdata/ctrl1.fasta"
	c.Check(runner.TranslatePaths(&local), check.ErrorMatches, `cannot find uuid in path: .*`)
}

func (s *arvadosSuite) TestTranslatePopulationArgs(c *check.C) {
	var runner arvadosContainerRunner
	args, err := translatePopulationArgs(&runner, []string{"stats", "-local=true"}, []populationFiles{
		{Name: "ctrl", Files: []string{"/keep/zzzzz-4zz18-0123456789abcde/c1.fasta"}},
		{Name: "exp", Files: []string{"/keep/zzzzz-4zz18-0123456789abcde/e1.fasta"}},
	})
	c.Assert(err, check.IsNil)
	c.Check(args, check.DeepEquals, []string{
		"stats", "-local=true",
		"--pop=ctrl", "/mnt/zzzzz-4zz18-0123456789abcde/c1.fasta",
		"--pop=exp", "/mnt/zzzzz-4zz18-0123456789abcde/e1.fasta",
	})
	c.Check(runner.Mounts, check.HasLen, 1)

	_, err = translatePopulationArgs(&runner, nil, nil)
	c.Check(err, check.ErrorMatches, `no input files .*`)
}

func (s *arvadosSuite) TestPlotContainerArgs(c *check.C) {
	cmd := plotcmd{
		commonArgs: commonArgs{threads: 3, loglevel: "debug"},
		title:      "t",
		name:       "RelBase",
		normalize:  "mut",
		xlim:       Range{1, 5},
		ylim:       Range{0, 60},
	}
	pops := []populationFiles{{Name: "ctrl", Files: []string{"/keep/zzzzz-4zz18-0123456789abcde/c1.fasta"}}}

	var runner arvadosContainerRunner
	args, err := cmd.containerArgs(&runner, "d41d8cd98f00b204e9800998ecf8427e+0/relbase.toml", pops)
	c.Assert(err, check.IsNil)
	c.Check(args, check.DeepEquals, []string{"plot", "-local=true",
		"-loglevel", "debug",
		"-threads", "3",
		"-title", "t",
		"-name", "RelBase",
		"-normalize", "mut",
		"-xlim", "1,5",
		"-ylim", "0,60",
		"-check-bounds=false",
		"-series-json", "/mnt/output/series.json",
		"-o", "/mnt/output",
		"-config", "/mnt/d41d8cd98f00b204e9800998ecf8427e+0/relbase.toml",
		"--pop=ctrl", "/mnt/zzzzz-4zz18-0123456789abcde/c1.fasta",
	})
	c.Check(runner.Mounts, check.HasLen, 2)

	// a local config file has already been applied to the flags
	runner = arvadosContainerRunner{}
	args, err = cmd.containerArgs(&runner, "relbase.toml", pops)
	c.Assert(err, check.IsNil)
	for _, arg := range args {
		c.Check(arg, check.Not(check.Equals), "-config")
	}
}

func (s *arvadosSuite) TestOpenLocal(c *check.C) {
	// paths without a collection id are read locally even when an
	// Arvados cluster is configured
	rdr, err := zopen("testdata/softmasked.fasta")
	c.Assert(err, check.IsNil)
	buf, err := ioutil.ReadAll(rdr)
	c.Check(err, check.IsNil)
	c.Check(rdr.Close(), check.IsNil)
	c.Check(string(buf), check.Equals, ">consensus\nGGAA\n>soft\nagaa\n>hard\nAGAA\n")

	_, err = zopen(c.MkDir() + "/missing.fasta.gz")
	c.Check(err, check.NotNil)
}
