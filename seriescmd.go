// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
)

// seriescmd writes the aggregated series for each population as JSON,
// without rendering anything.
type seriescmd struct {
	commonArgs
}

type populationSeries struct {
	Name      string
	Normalize string
	Series    Series
}

func (cmd *seriescmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cmd.commonArgs.Flags(flags)
	normalize := flags.String("normalize", "base", "normalization: none, mut, or base")
	buckets := flags.String("buckets", "", "only aggregate buckets `min,max` (default: 1 to largest)")
	ylim := flags.String("ylim", "", "fail if any value is outside `min,max`")
	outputFilename := flags.String("o", "-", "output `file`")
	pops, err := parsePopulationArgs(flags, args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	mode, err := ParseNormalization(*normalize)
	if err != nil {
		return 2
	}
	var bucketRange *BucketRange
	if *buckets != "" {
		var r BucketRange
		r, err = ParseBucketRange(*buckets)
		if err != nil {
			return 2
		}
		bucketRange = &r
	}
	if err = cmd.commonArgs.Setup(); err != nil {
		return 2
	}

	ledgers, _, err := cmd.loadLedgers(context.Background(), pops)
	if err != nil {
		return 1
	}
	aggs, err := AggregateAll(ledgers, mode, bucketRange)
	if err != nil {
		return 1
	}
	var out []populationSeries
	var all []Series
	for i, agg := range aggs {
		s := ToSeries(agg)
		out = append(out, populationSeries{Name: ledgers[i].Name, Normalize: mode.String(), Series: s})
		all = append(all, s)
	}
	if *ylim != "" {
		var r Range
		r, err = ParseRange(*ylim)
		if err != nil {
			return 2
		}
		err = CheckBounds(r, all...)
		if err != nil {
			return 1
		}
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	enc := json.NewEncoder(bufw)
	enc.SetEscapeHTML(false)
	err = enc.Encode(out)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
