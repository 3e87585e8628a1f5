// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	"gonum.org/v1/gonum/stat"
)

type statscmd struct {
	commonArgs
}

type populationStats struct {
	Name               string
	Files              int
	Sequences          int
	Rejected           int
	ConsensusLength    int
	BaseComposition    BaseComposition
	BucketSizes        []int          // BucketSizes[n] == number of sequences with n mutations
	SubstitutionTotals map[string]int `json:",omitempty"`
	MeanMutations      float64
	StdDevMutations    float64
}

func (cmd *statscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cmd.commonArgs.Flags(flags)
	runlocal := flags.Bool("local", false, "run on local host (default: run in an arvados container)")
	projectUUID := flags.String("project", "", "project `UUID` for output data")
	priority := flags.Int("priority", 500, "container request priority")
	outputFilename := flags.String("o", "-", "output `file`")
	pops, err := parsePopulationArgs(flags, args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if err = cmd.commonArgs.Setup(); err != nil {
		return 2
	}

	if !*runlocal {
		if *outputFilename != "-" {
			err = errors.New("cannot specify output file in container mode: not implemented")
			return 1
		}
		runner := arvadosContainerRunner{
			Name:        "relbase stats",
			Client:      arvados.NewClientFromEnv(),
			ProjectUUID: *projectUUID,
			RAM:         4 << 30,
			VCPUs:       2,
			Priority:    *priority,
		}
		runner.Args, err = translatePopulationArgs(&runner, []string{"stats", "-local=true", "-loglevel", cmd.loglevel, "-threads", strconv.Itoa(cmd.threads), "-o", "/mnt/output/stats.json"}, pops)
		if err != nil {
			return 1
		}
		var output string
		output, err = runner.Run()
		if err != nil {
			return 1
		}
		fmt.Fprintln(stdout, output+"/stats.json")
		return 0
	}

	ledgers, reports, err := cmd.loadLedgers(context.Background(), pops)
	if err != nil {
		return 1
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
	err = cmd.doStats(bufw, ledgers, reports)
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

func (cmd *statscmd) doStats(output io.Writer, ledgers []*MutationLedger, reports []populationReport) error {
	var ret []populationStats
	for i, l := range ledgers {
		ps := populationStats{
			Name:            l.Name,
			Files:           reports[i].Files,
			Sequences:       l.Sequences(),
			Rejected:        reports[i].Rejected,
			ConsensusLength: len(l.Consensus()),
			BaseComposition: l.BaseComposition(),
			BucketSizes:     l.BucketSizes(),
		}
		ps.MeanMutations, ps.StdDevMutations = mutationsMeanStdDev(l)
		raw, err := l.Aggregate(NormalizeNone, nil)
		if err != nil {
			return err
		}
		for k, pts := range raw {
			for _, p := range pts {
				if ps.SubstitutionTotals == nil {
					ps.SubstitutionTotals = map[string]int{}
				}
				ps.SubstitutionTotals[SubstitutionType(k).String()] += int(p.Value)
			}
		}
		ret = append(ret, ps)
	}
	enc := json.NewEncoder(output)
	enc.SetEscapeHTML(false)
	return enc.Encode(ret)
}

// mutationsMeanStdDev returns the mean and standard deviation of the
// number of mutations per sequence. The standard deviation is 0 when
// there are fewer than two sequences.
func mutationsMeanStdDev(l *MutationLedger) (float64, float64) {
	if l.Sequences() == 0 {
		return 0, 0
	}
	x := make([]float64, l.Len())
	weights := make([]float64, l.Len())
	for n, size := range l.BucketSizes() {
		x[n] = float64(n)
		weights[n] = float64(size)
	}
	if l.Sequences() < 2 {
		return stat.Mean(x, weights), 0
	}
	return stat.MeanStdDev(x, weights)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
