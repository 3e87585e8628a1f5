// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// classifiedRecord is the outcome of classifying one candidate
// record. Err is a *MalformedSequenceError if the record was
// rejected.
type classifiedRecord struct {
	Index  int // 1-based record number in the file (0 is the consensus)
	Name   string
	Seq    []byte
	Result ClassificationResult
	Err    error
}

// classifiedFile holds everything read from one input file.
type classifiedFile struct {
	Filename  string
	Consensus []byte
	Records   []classifiedRecord
	Rejected  int
}

// Results returns the results of the accepted records, in file order.
func (cf *classifiedFile) Results() []ClassificationResult {
	results := make([]ClassificationResult, 0, len(cf.Records)-cf.Rejected)
	for _, rec := range cf.Records {
		if rec.Err == nil {
			results = append(results, rec.Result)
		}
	}
	return results
}

type populationReport struct {
	Name      string
	Files     int
	Sequences int
	Rejected  int
}

// classifyFile reads a FASTA file and classifies every record after
// the first against the first. A malformed candidate is logged and
// skipped; an empty or malformed consensus fails the whole file.
func classifyFile(filename string) (*classifiedFile, error) {
	rdr, err := zopen(filename)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	recs, err := readFasta(rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if err = rdr.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	cf := &classifiedFile{Filename: filename}
	if len(recs) == 0 {
		log.Warnf("%s: no sequences", filename)
		return cf, nil
	}
	cf.Consensus = recs[0].Seq
	if len(cf.Consensus) == 0 {
		return nil, fmt.Errorf("%s: consensus %q: empty sequence", filename, recs[0].Name)
	}
	if err := checkBases(cf.Consensus); err != nil {
		return nil, fmt.Errorf("%s: consensus: %w", filename, err)
	}
	for i, rec := range recs[1:] {
		res, err := Classify(cf.Consensus, rec.Seq)
		if err != nil {
			log.Warnf("%s: ignoring record %d %q: %s", filename, i+1, rec.Name, err)
			cf.Rejected++
		}
		cf.Records = append(cf.Records, classifiedRecord{Index: i + 1, Name: rec.Name, Seq: rec.Seq, Result: res, Err: err})
	}
	return cf, nil
}

// classifyPopulations classifies all files concurrently (at most
// threads at a time) and returns them grouped by population, in the
// order given.
func classifyPopulations(ctx context.Context, pops []populationFiles, threads int) ([][]*classifiedFile, error) {
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	starttime := time.Now()
	todo := 0
	out := make([][]*classifiedFile, len(pops))
	for i, pop := range pops {
		out[i] = make([]*classifiedFile, len(pop.Files))
		todo += len(pop.Files)
	}
	done := make(chan struct{}, todo)
	th := throttle{Max: threads}
	for i, pop := range pops {
		for j, filename := range pop.Files {
			i, j, filename, popname := i, j, filename, pop.Name
			if ctx.Err() != nil {
				th.Report(ctx.Err())
				break
			}
			th.Go(func() error {
				log.Debugf("%s: %s starting", popname, filename)
				cf, err := classifyFile(filename)
				if err != nil {
					return err
				}
				out[i][j] = cf
				done <- struct{}{}
				log.Infof("%s: %s: %d sequences, %d rejected (%d/%d files, %v)", popname, filename, len(cf.Records)-cf.Rejected, cf.Rejected, len(done), todo, time.Since(starttime).Round(time.Millisecond))
				return nil
			})
		}
	}
	if err := th.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ingest builds one MutationLedger per population. Classification
// runs in parallel, but each ledger is filled afterwards in
// command-line file order.
func ingest(ctx context.Context, pops []populationFiles, threads int) ([]*MutationLedger, []populationReport, error) {
	if len(pops) == 0 {
		return nil, nil, errors.New("no input files (use --ctrl file... --exp file...)")
	}
	classified, err := classifyPopulations(ctx, pops, threads)
	if err != nil {
		return nil, nil, err
	}
	ledgers := make([]*MutationLedger, len(pops))
	reports := make([]populationReport, len(pops))
	for i, pop := range pops {
		ledger := NewMutationLedger(pop.Name)
		report := populationReport{Name: pop.Name, Files: len(pop.Files)}
		for _, cf := range classified[i] {
			report.Rejected += cf.Rejected
			if cf.Consensus == nil {
				continue
			}
			if err := ledger.RecordBaseComposition(cf.Consensus); err != nil {
				return nil, nil, fmt.Errorf("%s: %w", cf.Filename, err)
			}
			ledger.Merge(cf.Results())
		}
		report.Sequences = ledger.Sequences()
		if report.Sequences == 0 {
			log.Infof("%s: no valid sequences, nothing to plot", pop.Name)
		}
		ledgers[i] = ledger
		reports[i] = report
	}
	return ledgers, reports, nil
}
