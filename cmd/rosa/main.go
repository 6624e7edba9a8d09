// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Command rosa runs one ROSA campaign: it loads a configuration file,
// spawns the configured fuzzers, and drives the Campaign Controller to
// completion (spec.md §4.7).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rosa-project/rosa/pkg/campaign"
	"github.com/rosa-project/rosa/pkg/config"
	"github.com/rosa-project/rosa/pkg/log"
	"github.com/rosa-project/rosa/pkg/rosaerr"
)

var (
	flagConfig    = flag.String("config", "", "path to the campaign configuration file (TOML)")
	flagVerbosity = flag.Int("v", 0, "log verbosity level")
)

// Exit codes, spec.md §6: 0 normal, 1 configuration error, 2 fatal runtime
// error, 130 interrupted.
const (
	exitOK        = 0
	exitConfig    = 1
	exitFatal     = 2
	exitInterrupt = 130
)

func main() {
	flag.Parse()
	log.SetVerbosity(*flagVerbosity)

	if *flagConfig == "" {
		fmt.Fprintln(os.Stderr, "rosa: -config is required")
		os.Exit(exitConfig)
	}

	os.Exit(run(*flagConfig))
}

func run(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rosa: %v\n", err)
		return exitConfig
	}

	c, err := campaign.New(cfg, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rosa: %v\n", err)
		if rosaerr.Is(err, rosaerr.ErrConfig) {
			return exitConfig
		}
		return exitFatal
	}

	if err := c.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "rosa: %v\n", err)
		return exitFatal
	}
	if c.Interrupted() {
		return exitInterrupt
	}
	return exitOK
}
