// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// exportNumpy writes one float64 matrix per population: row k is
// substitution type k, column n is bucket n.
type exportNumpy struct {
	commonArgs
}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	outputDir := flags.String("output-dir", "./out", "output `directory`")
	gz := flags.Bool("gzip", false, "write .npy.gz files")
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
	if err = cmd.commonArgs.Setup(); err != nil {
		return 2
	}

	ledgers, _, err := cmd.loadLedgers(context.Background(), pops)
	if err != nil {
		return 1
	}
	err = os.MkdirAll(*outputDir, 0777)
	if err != nil {
		return 1
	}
	err = writeTypeLabels(filepath.Join(*outputDir, "types.csv"))
	if err != nil {
		return 1
	}
	for _, l := range ledgers {
		var agg Aggregate
		if l.Len() > 0 {
			agg, err = l.Aggregate(mode, &BucketRange{0, l.MaxBucket()})
			if err != nil {
				return 1
			}
		}
		data, rows, cols := aggregateMatrix(agg, l.Len())
		fnm := filepath.Join(*outputDir, l.Name+".npy")
		if *gz {
			fnm += ".gz"
		}
		log.Infof("writing %d x %d matrix to %s", rows, cols, fnm)
		err = writeNumpy(fnm, *gz, data, rows, cols)
		if err != nil {
			return 1
		}
	}
	return 0
}

// aggregateMatrix lays agg out row-major with one row per
// substitution type and one column per bucket. Missing points are 0.
func aggregateMatrix(agg Aggregate, buckets int) (data []float64, rows, cols int) {
	rows, cols = NumSubstitutions, buckets
	data = make([]float64, rows*cols)
	for k, pts := range agg {
		for _, p := range pts {
			if p.Bucket < cols {
				data[k*cols+p.Bucket] = p.Value
			}
		}
	}
	return
}

func writeNumpy(fnm string, gz bool, data []float64, rows, cols int) error {
	f, err := os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	var w io.Writer = bufw
	var gzw *pgzip.Writer
	if gz {
		gzw = pgzip.NewWriter(bufw)
		w = gzw
	}
	npw, err := gonpy.NewWriter(nopCloser{w})
	if err != nil {
		return err
	}
	npw.Shape = []int{rows, cols}
	err = npw.WriteFloat64(data)
	if err != nil {
		return fmt.Errorf("%s: %w", fnm, err)
	}
	if gzw != nil {
		if err = gzw.Close(); err != nil {
			return err
		}
	}
	if err = bufw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func writeTypeLabels(fnm string) error {
	f, err := os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	for _, k := range SubstitutionTypes() {
		fmt.Fprintf(bufw, "%d,%q\n", k, k.String())
	}
	if err = bufw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", fnm, err)
	}
	return f.Close()
}
