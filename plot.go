// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	log "github.com/sirupsen/logrus"
)

//go:embed plot.py
var plotscript string

type plotStyle struct{ color, marker string }

// populationStyles fixes the look of the control and experimental
// populations regardless of command line order.
var populationStyles = map[string]plotStyle{
	PopulationControl:      {"#b0b0b0", "o"},
	PopulationExperimental: {"black", "*"},
}

// extraStyles are assigned to --pop=NAME populations in command line
// order.
var extraStyles = []plotStyle{
	{"tab:red", "^"},
	{"tab:blue", "s"},
	{"tab:green", "D"},
	{"tab:purple", "v"},
}

// drawOrder returns the indexes of ledgers in the order they are
// drawn: control, then experimental, then the rest as given.
func drawOrder(ledgers []*MutationLedger) []int {
	rank := func(name string) int {
		switch name {
		case PopulationControl:
			return 0
		case PopulationExperimental:
			return 1
		}
		return 2
	}
	order := make([]int, len(ledgers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rank(ledgers[order[a]].Name) < rank(ledgers[order[b]].Name)
	})
	return order
}

// plotInput is the JSON document read by plot.py.
type plotInput struct {
	Title       string           `json:"title"`
	Name        string           `json:"name"`
	OutputDir   string           `json:"output_dir"`
	XLim        [2]float64       `json:"xlim"`
	YLim        [2]float64       `json:"ylim"`
	Types       []string         `json:"types"`
	Populations []plotPopulation `json:"populations"`
}

type plotPopulation struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Marker string `json:"marker"`
	Series Series `json:"series"`
}

type plotcmd struct {
	commonArgs
	title       string
	name        string
	outputDir   string
	normalize   string
	xlim        Range
	ylim        Range
	checkBounds bool
	render      bool
	seriesJSON  string
}

func (cmd *plotcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	cmd.xlim = Range{1, 5}
	cmd.ylim = Range{0, 1.1}
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cmd.commonArgs.Flags(flags)
	runlocal := flags.Bool("local", false, "run on local host (default: run in an arvados container)")
	projectUUID := flags.String("project", "", "project `UUID` for output data")
	priority := flags.Int("priority", 500, "container request priority")
	configFile := flags.String("config", "", "read plot settings from TOML `file` (flags given explicitly take precedence)")
	flags.StringVar(&cmd.title, "title", "(RelBase) Mutations per Bucket relative to Count of Origin Base", "figure `title`")
	flags.StringVar(&cmd.name, "name", "RelBase", "output image `basename`")
	flags.StringVar(&cmd.outputDir, "o", "out", "output `directory`")
	flags.StringVar(&cmd.normalize, "normalize", "base", "normalization: none, mut (by mutation count), or base (by base composition)")
	flags.Var(&cmd.xlim, "xlim", "x axis `min,max` (buckets outside are not plotted)")
	flags.Var(&cmd.ylim, "ylim", "y axis `min,max` (values outside are an error)")
	flags.BoolVar(&cmd.checkBounds, "check-bounds", true, "fail if any plotted value is outside -ylim")
	flags.BoolVar(&cmd.render, "render", true, "render images with python3/matplotlib")
	flags.StringVar(&cmd.seriesJSON, "series-json", "", "also write the plotted series to `file`")
	pops, err := parsePopulationArgs(flags, args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return 2
	}
	if err = cfg.apply(flags); err != nil {
		return 2
	}
	mode, err := ParseNormalization(cmd.normalize)
	if err != nil {
		return 2
	}
	if err = cmd.commonArgs.Setup(); err != nil {
		return 2
	}

	if !*runlocal {
		runner := arvadosContainerRunner{
			Name:        "relbase plot",
			Client:      arvados.NewClientFromEnv(),
			ProjectUUID: *projectUUID,
			RAM:         8 << 30,
			VCPUs:       4,
			Priority:    *priority,
		}
		runner.Args, err = cmd.containerArgs(&runner, *configFile, pops)
		if err != nil {
			return 1
		}
		var output string
		output, err = runner.Run()
		if err != nil {
			return 1
		}
		fmt.Fprintln(stdout, output+"/"+cmd.name+".png")
		return 0
	}

	ledgers, _, err := cmd.loadLedgers(context.Background(), pops)
	if err != nil {
		return 1
	}
	input, err := cmd.plotInput(ledgers, mode)
	if err != nil {
		return 1
	}
	if cmd.seriesJSON != "" {
		err = writeJSONFile(cmd.seriesJSON, input)
		if err != nil {
			return 1
		}
	}
	if !cmd.render {
		return 0
	}
	err = cmd.renderImages(input, stdout, stderr)
	if err != nil {
		return 1
	}
	return 0
}

// containerArgs returns the command line for running this plot in a
// container. Settings read from a local config file are already in
// the flags and are passed explicitly; a config file stored in a
// collection is also passed through, translated to its mount point.
func (cmd *plotcmd) containerArgs(runner *arvadosContainerRunner, configFile string, pops []populationFiles) ([]string, error) {
	args := []string{"plot", "-local=true",
		"-loglevel", cmd.loglevel,
		"-threads", strconv.Itoa(cmd.threads),
		"-title", cmd.title,
		"-name", cmd.name,
		"-normalize", cmd.normalize,
		"-xlim", cmd.xlim.String(),
		"-ylim", cmd.ylim.String(),
		fmt.Sprintf("-check-bounds=%v", cmd.checkBounds),
		"-series-json", "/mnt/output/series.json",
		"-o", "/mnt/output",
	}
	if configFile != "" && collectionInPathRe.MatchString(configFile) {
		if err := runner.TranslatePaths(&configFile); err != nil {
			return nil, err
		}
		args = append(args, "-config", configFile)
	}
	return translatePopulationArgs(runner, args, pops)
}

// plotInput aggregates each ledger, keeps the buckets inside -xlim,
// and checks the remaining values against -ylim. Populations are
// listed in drawing order (see drawOrder).
func (cmd *plotcmd) plotInput(ledgers []*MutationLedger, mode Normalization) (*plotInput, error) {
	aggs, err := AggregateAll(ledgers, mode, nil)
	if err != nil {
		return nil, err
	}
	input := &plotInput{
		Title:     cmd.title,
		Name:      cmd.name,
		OutputDir: cmd.outputDir,
		XLim:      [2]float64{cmd.xlim.Min, cmd.xlim.Max},
		YLim:      [2]float64{cmd.ylim.Min, cmd.ylim.Max},
	}
	for _, k := range SubstitutionTypes() {
		input.Types = append(input.Types, k.String())
	}
	var all []Series
	extra := 0
	for _, i := range drawOrder(ledgers) {
		series := ToSeries(aggs[i]).Window(cmd.xlim)
		style, ok := populationStyles[ledgers[i].Name]
		if !ok {
			style = extraStyles[extra%len(extraStyles)]
			extra++
		}
		input.Populations = append(input.Populations, plotPopulation{
			Name:   ledgers[i].Name,
			Color:  style.color,
			Marker: style.marker,
			Series: series,
		})
		all = append(all, series)
	}
	if cmd.checkBounds {
		if err := CheckBounds(cmd.ylim, all...); err != nil {
			return nil, err
		}
	}
	return input, nil
}

func (cmd *plotcmd) renderImages(input *plotInput, stdout, stderr io.Writer) error {
	log.Print(input.Title)
	err := os.MkdirAll(input.OutputDir, 0777)
	if err != nil {
		return err
	}
	tmpdir, err := ioutil.TempDir("", "relbase-plot-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpdir)
	inputFile := filepath.Join(tmpdir, "plot.json")
	err = writeJSONFile(inputFile, input)
	if err != nil {
		return err
	}
	py := exec.Command("python3", "-", inputFile)
	py.Stdin = strings.NewReader(plotscript)
	py.Stdout = stdout
	py.Stderr = stderr
	err = py.Run()
	if err != nil {
		return fmt.Errorf("python3 plot.py: %w", err)
	}
	return nil
}

// translatePopulationArgs appends the population markers and files to
// args, translating file paths to their container mount points.
func translatePopulationArgs(runner *arvadosContainerRunner, args []string, pops []populationFiles) ([]string, error) {
	if len(pops) == 0 {
		return nil, errors.New("no input files (use --ctrl file... --exp file...)")
	}
	for _, pop := range pops {
		args = append(args, "--pop="+pop.Name)
		for _, fnm := range pop.Files {
			fnm := fnm
			if err := runner.TranslatePaths(&fnm); err != nil {
				return nil, err
			}
			args = append(args, fnm)
		}
	}
	return args, nil
}

func writeJSONFile(fnm string, v interface{}) error {
	f, err := os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err = enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", fnm, err)
	}
	return f.Close()
}
