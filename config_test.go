// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"flag"
	"io/ioutil"

	"gopkg.in/check.v1"
)

type configSuite struct{}

var _ = check.Suite(&configSuite{})

func (s *configSuite) TestApply(c *check.C) {
	tmpdir := c.MkDir()
	err := ioutil.WriteFile(tmpdir+"/relbase.toml", []byte(`
[plot]
title = "Brca2 vs control"
normalize = "mut"
ylim = [0.0, 60.0]
check-bounds = false

[run]
threads = 3
`), 0644)
	c.Assert(err, check.IsNil)
	cfg, err := loadConfig(tmpdir + "/relbase.toml")
	c.Assert(err, check.IsNil)

	var cmd plotcmd
	cmd.ylim = Range{0, 1.1}
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	cmd.commonArgs.Flags(flags)
	flags.StringVar(&cmd.title, "title", "default title", "")
	flags.StringVar(&cmd.normalize, "normalize", "base", "")
	flags.Var(&cmd.ylim, "ylim", "")
	flags.BoolVar(&cmd.checkBounds, "check-bounds", true, "")
	c.Assert(flags.Parse([]string{"-normalize=none"}), check.IsNil)
	c.Assert(cfg.apply(flags), check.IsNil)

	c.Check(cmd.title, check.Equals, "Brca2 vs control")
	c.Check(cmd.normalize, check.Equals, "none")
	c.Check(cmd.ylim, check.Equals, Range{0, 60})
	c.Check(cmd.checkBounds, check.Equals, false)
	c.Check(cmd.threads, check.Equals, 3)
}

func (s *configSuite) TestMissingFile(c *check.C) {
	cfg, err := loadConfig(c.MkDir() + "/nonexistent.toml")
	c.Check(err, check.IsNil)
	c.Check(cfg.Plot.Title, check.IsNil)
}

func (s *configSuite) TestUnknownKey(c *check.C) {
	fnm := c.MkDir() + "/bad.toml"
	c.Assert(ioutil.WriteFile(fnm, []byte("[plot]\ncolour = \"red\"\n"), 0644), check.IsNil)
	_, err := loadConfig(fnm)
	c.Check(err, check.ErrorMatches, `config .*: unknown keys .*colour.*`)
}

func (s *configSuite) TestBadRange(c *check.C) {
	fnm := c.MkDir() + "/bad.toml"
	c.Assert(ioutil.WriteFile(fnm, []byte("[plot]\nxlim = [1.0, 2.0, 3.0]\n"), 0644), check.IsNil)
	cfg, err := loadConfig(fnm)
	c.Assert(err, check.IsNil)
	var xlim Range
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.Var(&xlim, "xlim", "")
	c.Check(cfg.apply(flags), check.ErrorMatches, `config: xlim: .*`)
}
