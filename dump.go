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
	"strings"

	"github.com/arvados/relbase/hgvs"
)

// dump writes one TSV line per candidate sequence: population, file,
// record number, record name, total mutations, and the substitutions
// in HGVS notation.
type dump struct {
	commonArgs
	mergeRuns       bool
	includeRejected bool
}

func (cmd *dump) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := cmd.run(prog, args, stdin, stdout, stderr)
	if err == flag.ErrHelp {
		return 0
	} else if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (cmd *dump) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cmd.commonArgs.Flags(flags)
	flags.BoolVar(&cmd.mergeRuns, "merge-runs", false, "report adjacent substitutions as one delins variant")
	flags.BoolVar(&cmd.includeRejected, "include-rejected", false, "also list rejected sequences, with the reason")
	outputFilename := flags.String("o", "-", "output `file`")
	pops, err := parsePopulationArgs(flags, args)
	if err != nil {
		return err
	}
	if err = cmd.commonArgs.Setup(); err != nil {
		return err
	}
	classified, err := classifyPopulations(context.Background(), pops, cmd.threads)
	if err != nil {
		return err
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
		if err != nil {
			return err
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	for i, pop := range pops {
		for _, cf := range classified[i] {
			err = cmd.dumpFile(bufw, pop.Name, cf)
			if err != nil {
				return err
			}
		}
	}
	if err = bufw.Flush(); err != nil {
		return err
	}
	return output.Close()
}

func (cmd *dump) dumpFile(w io.Writer, popname string, cf *classifiedFile) error {
	diff := hgvs.SNVs
	if cmd.mergeRuns {
		diff = hgvs.Diff
	}
	for _, rec := range cf.Records {
		if rec.Err != nil {
			if cmd.includeRejected {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t-\t%s\n", popname, cf.Filename, rec.Index, rec.Name, rec.Err)
			}
			continue
		}
		vars, err := diff(string(cf.Consensus), string(rec.Seq))
		if err != nil {
			return fmt.Errorf("%s: record %d: %w", cf.Filename, rec.Index, err)
		}
		strs := make([]string, len(vars))
		for i := range vars {
			strs[i] = vars[i].String()
		}
		hgvsList := "."
		if len(strs) > 0 {
			hgvsList = strings.Join(strs, ";")
		}
		_, err = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\n", popname, cf.Filename, rec.Index, rec.Name, rec.Result.Total, hgvsList)
		if err != nil {
			return err
		}
	}
	return nil
}
