// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// fileConfig is the TOML config accepted by -config. Unset fields
// leave the corresponding flag at its default.
//
//	[plot]
//	title = "(RelBase) Mutations per Bucket relative to Count of Origin Base"
//	name = "RelBase"
//	normalize = "base"
//	xlim = [1.0, 5.0]
//	ylim = [0.0, 1.1]
//	check-bounds = true
//
//	[run]
//	loglevel = "info"
//	threads = 8
type fileConfig struct {
	Plot plotConfig `toml:"plot"`
	Run  runConfig  `toml:"run"`
}

type plotConfig struct {
	Title       *string    `toml:"title"`
	Name        *string    `toml:"name"`
	Normalize   *string    `toml:"normalize"`
	XLim        *[]float64 `toml:"xlim"`
	YLim        *[]float64 `toml:"ylim"`
	CheckBounds *bool      `toml:"check-bounds"`
}

type runConfig struct {
	LogLevel *string `toml:"loglevel"`
	Threads  *int    `toml:"threads"`
}

// loadConfig reads a TOML config file. A missing file is not an
// error.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

// apply sets every flag that has a value in cfg and was not given
// explicitly on the command line.
func (cfg fileConfig) apply(flags *flag.FlagSet) error {
	explicit := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	set := func(name, value string) error {
		if explicit[name] || flags.Lookup(name) == nil {
			return nil
		}
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		return nil
	}
	pairs := []configValue{
		{"title", cfg.Plot.Title},
		{"name", cfg.Plot.Name},
		{"normalize", cfg.Plot.Normalize},
		{"xlim", rangeString(cfg.Plot.XLim)},
		{"ylim", rangeString(cfg.Plot.YLim)},
		{"loglevel", cfg.Run.LogLevel},
	}
	if cfg.Plot.CheckBounds != nil {
		s := fmt.Sprintf("%v", *cfg.Plot.CheckBounds)
		pairs = append(pairs, configValue{"check-bounds", &s})
	}
	if cfg.Run.Threads != nil {
		s := fmt.Sprintf("%d", *cfg.Run.Threads)
		pairs = append(pairs, configValue{"threads", &s})
	}
	for _, p := range pairs {
		if p.value == nil {
			continue
		}
		if err := set(p.name, *p.value); err != nil {
			return err
		}
	}
	return nil
}

type configValue struct {
	name  string
	value *string
}

func rangeString(lim *[]float64) *string {
	if lim == nil {
		return nil
	}
	var s string
	if len(*lim) == 2 {
		s = fmt.Sprintf("%g,%g", (*lim)[0], (*lim)[1])
	} else {
		// let ParseRange reject it
		s = fmt.Sprint(*lim)
	}
	return &s
}
