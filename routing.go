// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"fmt"
	"strings"
)

const (
	PopulationControl      = "ctrl"
	PopulationExperimental = "exp"
)

// populationFiles lists the input files routed to one population.
type populationFiles struct {
	Name  string
	Files []string
}

// splitPopulationArgs separates ordinary flags from population
// routing markers. Everything before the first marker is returned as
// flagArgs; each marker starts a new population whose files are the
// following non-marker args:
//
//	-normalize=base --ctrl in/Ctrl_1.txt in/Ctrl_2.txt --exp in/Brca2_1.txt
//
// Markers are --ctrl / -ctrl, --exp / -exp, and --pop=NAME for any
// other population name. A population named more than once collects
// files from every occurrence. Populations are returned in order of
// first appearance.
func splitPopulationArgs(args []string) (flagArgs []string, pops []populationFiles, err error) {
	idx := map[string]int{}
	cur := -1
	for _, arg := range args {
		name, isMarker := populationMarker(arg)
		if isMarker {
			if name == "" {
				return nil, nil, fmt.Errorf("%w: empty population name in %q", ErrInvalidConfiguration, arg)
			}
			i, ok := idx[name]
			if !ok {
				i = len(pops)
				idx[name] = i
				pops = append(pops, populationFiles{Name: name})
			}
			cur = i
		} else if cur < 0 {
			flagArgs = append(flagArgs, arg)
		} else {
			pops[cur].Files = append(pops[cur].Files, arg)
		}
	}
	return flagArgs, pops, nil
}

func populationMarker(arg string) (string, bool) {
	switch arg {
	case "--ctrl", "-ctrl":
		return PopulationControl, true
	case "--exp", "-exp":
		return PopulationExperimental, true
	}
	for _, prefix := range []string{"--pop=", "-pop="} {
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix), true
		}
	}
	return "", false
}
