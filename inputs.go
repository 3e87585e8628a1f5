// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	log "github.com/sirupsen/logrus"
)

// commonArgs are the flags shared by every command that reads
// population files.
type commonArgs struct {
	threads  int
	loglevel string
	pprof    string
}

func (a *commonArgs) Flags(flags *flag.FlagSet) {
	flags.IntVar(&a.threads, "threads", 0, "number of input files to read concurrently (0 = GOMAXPROCS)")
	flags.StringVar(&a.loglevel, "loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	flags.StringVar(&a.pprof, "pprof", "", "serve Go profile data at http://`[addr]:port`")
}

// Setup applies the log level and starts the pprof server if
// requested.
func (a *commonArgs) Setup() error {
	lvl, err := log.ParseLevel(a.loglevel)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if a.pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(a.pprof, nil))
		}()
	}
	return nil
}

// parsePopulationArgs parses the flag part of args into flags and
// returns the population routes that follow.
func parsePopulationArgs(flags *flag.FlagSet, args []string) ([]populationFiles, error) {
	flagArgs, pops, err := splitPopulationArgs(args)
	if err != nil {
		return nil, err
	}
	err = flags.Parse(flagArgs)
	if err != nil {
		return nil, err
	} else if flags.NArg() > 0 {
		return nil, fmt.Errorf("errant command line arguments after parsed flags: %v (input files must follow --ctrl, --exp, or --pop=NAME)", flags.Args())
	}
	return pops, nil
}

// loadLedgers ingests the routed files and logs a per-population
// summary.
func (a *commonArgs) loadLedgers(ctx context.Context, pops []populationFiles) ([]*MutationLedger, []populationReport, error) {
	ledgers, reports, err := ingest(ctx, pops, a.threads)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range reports {
		log.Infof("%s: %d files, %d sequences, %d rejected", r.Name, r.Files, r.Sequences, r.Rejected)
	}
	return ledgers, reports, nil
}
