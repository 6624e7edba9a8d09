// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package campaign implements the Campaign Controller (spec.md §4.7): the
// state machine driving a campaign from process spawn through seed
// collection, clustering, and streaming classification to shutdown. It is
// the single synchronous goroutine that calls into every other package;
// no other package calls back into it (spec.md §5).
package campaign

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rosa-project/rosa/pkg/adapter"
	"github.com/rosa-project/rosa/pkg/cluster"
	"github.com/rosa-project/rosa/pkg/collector"
	"github.com/rosa-project/rosa/pkg/config"
	"github.com/rosa-project/rosa/pkg/distance"
	"github.com/rosa-project/rosa/pkg/findings"
	"github.com/rosa-project/rosa/pkg/log"
	"github.com/rosa-project/rosa/pkg/oracle"
	"github.com/rosa-project/rosa/pkg/rosaerr"
	"github.com/rosa-project/rosa/pkg/rosastats"
	"github.com/rosa-project/rosa/pkg/trace"
)

// Phase is one of the five states of spec.md §4.7's state machine. Phase
// transitions are monotone (spec.md §3): a Campaign never moves backward.
type Phase int

const (
	Starting Phase = iota
	Collecting
	Clustering
	Detecting
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Collecting:
		return "collecting"
	case Clustering:
		return "clustering"
	case Detecting:
		return "detecting"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Campaign orchestrates one run of spec.md §4.7's pipeline.
type Campaign struct {
	cfg        config.Config
	configPath string
	adapters   []adapter.Fuzzer
	main       adapter.Fuzzer
	collector  *collector.Collector
	writer     *findings.Writer
	oracle     oracle.Oracle
	stats      *rosastats.Registry

	phase                   Phase
	start                   time.Time
	cov                     coverageTracker
	seeds                   []trace.Pair
	clusters                []*cluster.Cluster
	seenFindingFingerprints map[string]bool
	interrupted             bool
}

// Interrupted reports whether Run stopped because its context was
// cancelled (SIGINT/SIGTERM, or cancellation of the ctx passed to Run)
// rather than failing, so cmd/rosa can produce spec.md §6's exit code 130.
func (c *Campaign) Interrupted() bool { return c.interrupted }

// New wires a Campaign from a loaded, validated configuration. configPath
// is kept so the starting phase can copy the file verbatim into
// config.toml (spec.md §6).
func New(cfg config.Config, configPath string) (*Campaign, error) {
	writer, err := findings.NewWriter(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
	}

	var adapters []adapter.Fuzzer
	var main adapter.Fuzzer
	for _, fc := range cfg.Fuzzers {
		spec := adapter.Spec{
			Name:         fc.Name,
			Cmd:          fc.Cmd,
			Env:          fc.Env,
			TestInputDir: fc.TestInputDir,
			TraceDumpDir: fc.TraceDumpDir,
			CrashesDir:   fc.CrashesDir,
			Backend:      fc.Backend,
		}
		a, err := adapter.New(spec, writer.LogDir())
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
		if fc.Name == adapter.MainName {
			main = a
		}
	}

	stats := rosastats.NewRegistry()
	stats.Create(rosastats.TotalTraces)
	stats.Create(rosastats.BackdoorsUnique)
	stats.Create(rosastats.BackdoorsTotal)
	stats.Create(rosastats.EdgeCoverage)
	stats.Create(rosastats.SyscallCoverage)

	return &Campaign{
		cfg:                     cfg,
		configPath:              configPath,
		adapters:                adapters,
		main:                    main,
		collector:               collector.New(adapters),
		writer:                  writer,
		oracle:                  oracle.CompMinMax{},
		stats:                   stats,
		phase:                   Starting,
		seenFindingFingerprints: map[string]bool{},
	}, nil
}

// Phase reports the Campaign's current state.
func (c *Campaign) Phase() Phase { return c.phase }

// Run drives the full state machine to completion, returning a non-nil
// error only for a fatal condition (spec.md §7): an internal invariant
// violation, a Protocol error, or the death of the main fuzzer instance.
// A user interrupt is not an error; callers distinguish it by calling
// Interrupted after Run returns (spec.md §6's exit code 130).
func (c *Campaign) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.runStarting(ctx); err != nil {
		return err
	}
	if err := c.runCollecting(ctx); err != nil {
		c.shutdown()
		return err
	}
	if ctx.Err() != nil {
		c.interrupted = true
		c.shutdown()
		return nil
	}
	if err := c.runClustering(); err != nil {
		c.shutdown()
		return err
	}
	if err := c.runDetecting(ctx); err != nil {
		c.shutdown()
		return err
	}
	if ctx.Err() != nil {
		c.interrupted = true
	}
	c.shutdown()
	return nil
}

func (c *Campaign) runStarting(ctx context.Context) error {
	c.phase = Starting
	c.start = time.Now()
	if err := c.writer.CopyConfig(c.configPath); err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
	}
	for _, a := range c.adapters {
		if err := a.Start(); err != nil {
			return fmt.Errorf("%w: %v", rosaerr.ErrAdapter, err)
		}
	}
	log.Logf(0, "starting: %d fuzzer(s) launched", len(c.adapters))

	if !c.cfg.WaitForFuzzers {
		return nil
	}
	reporter, ok := c.main.(adapter.StatusReporter)
	if !ok {
		return nil
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		status, err := reporter.Status()
		if err != nil {
			return fmt.Errorf("%w: %v", rosaerr.ErrAdapter, err)
		}
		if status == adapter.Running {
			return nil
		}
		sleep(ctx, c.pollInterval())
	}
}

func (c *Campaign) runCollecting(ctx context.Context) error {
	c.phase = Collecting
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.checkMainAlive(); err != nil {
			return err
		}
		pairs, err := c.collector.Poll(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
		}
		for _, p := range pairs {
			if err := c.ingestSeed(p); err != nil {
				return err
			}
		}
		cause, done := c.seedEndCause()
		if done {
			c.appendStatsRow(cause)
			log.Logf(0, "collecting -> clustering: %s", cause)
			return nil
		}
		c.appendStatsRow("")
		sleep(ctx, c.pollInterval())
	}
}

func (c *Campaign) ingestSeed(p trace.Pair) error {
	if _, err := c.writer.WriteTrace(p); err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
	}
	c.cov.observe(p.Trace)
	c.stats.Get(rosastats.TotalTraces).Add(1)
	c.seeds = append(c.seeds, p)
	return nil
}

// seedEndCause reports whether any configured seed-end condition is
// satisfied (spec.md §4.7's disjunction), and which one.
func (c *Campaign) seedEndCause() (cause string, done bool) {
	sc := c.cfg.SeedConditions
	if sc.Seconds > 0 && time.Since(c.start) >= time.Duration(sc.Seconds)*time.Second {
		return "seconds", true
	}
	if sc.EdgeCoverage > 0 && c.cov.edgeFraction() >= sc.EdgeCoverage {
		return "edge_coverage", true
	}
	if sc.SyscallCoverage > 0 && c.cov.syscallFraction() >= sc.SyscallCoverage {
		return "syscall_coverage", true
	}
	return "", false
}

func (c *Campaign) runClustering() error {
	c.phase = Clustering
	criterion, err := distance.ParseCriterion(c.cfg.ClusterFormationCriterion)
	if err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrInternal, err)
	}
	clusters, err := cluster.Build(c.seeds, cluster.Config{
		Criterion:        criterion,
		Metric:           distance.Metric(c.cfg.ClusterFormationDistanceMetric),
		EdgeTolerance:    c.cfg.ClusterFormationEdgeTolerance,
		SyscallTolerance: c.cfg.ClusterFormationSyscallTolerance,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrProtocol, err)
	}
	c.clusters = clusters

	for _, cl := range clusters {
		if err := c.writer.WriteCluster(cl); err != nil {
			return fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
		}
		for _, p := range cl.Members {
			decision := oracle.Decision{
				PairUID:       p.UID,
				ClusterUID:    cl.UID,
				IsBackdoor:    false,
				Reason:        distance.ReasonSeed,
				OffsetSeconds: time.Since(c.start).Seconds(),
			}
			if err := c.writer.WriteDecision(decision); err != nil {
				return fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
			}
		}
	}
	log.Logf(0, "clustering: %d cluster(s) from %d seed(s)", len(clusters), len(c.seeds))
	c.appendStatsRow("")
	return nil
}

func (c *Campaign) runDetecting(ctx context.Context) error {
	c.phase = Detecting
	selectionCriterion, err := distance.ParseCriterion(c.cfg.ClusterSelectionCriterion)
	if err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrInternal, err)
	}
	oracleCriterion, err := distance.ParseCriterion(c.cfg.OracleCriterion)
	if err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrInternal, err)
	}
	selectionMetric := distance.Metric(c.cfg.ClusterSelectionDistanceMetric)
	oracleMetric := distance.Metric(c.cfg.OracleDistanceMetric)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.checkMainAlive(); err != nil {
			return err
		}
		pairs, err := c.collector.Poll(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
		}
		for _, p := range pairs {
			if err := c.classify(p, selectionCriterion, selectionMetric, oracleCriterion, oracleMetric); err != nil {
				return err
			}
		}
		if len(pairs) > 0 {
			c.appendStatsRow("")
		}
		sleep(ctx, c.pollInterval())
	}
}

func (c *Campaign) classify(p trace.Pair, selCriterion distance.Criterion, selMetric distance.Metric, oraCriterion distance.Criterion, oraMetric distance.Metric) error {
	tracePath, err := c.writer.WriteTrace(p)
	if err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
	}
	c.cov.observe(p.Trace)
	c.stats.Get(rosastats.TotalTraces).Add(1)

	selected, err := selectCluster(p, c.clusters, selCriterion, selMetric)
	if err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrProtocol, err)
	}

	decision, err := c.oracle.Decide(p, selected, oraCriterion, oraMetric)
	if err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrInternal, err)
	}
	decision.OffsetSeconds = time.Since(c.start).Seconds()

	if err := c.writer.WriteDecision(decision); err != nil {
		return fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
	}
	if decision.IsBackdoor {
		if err := c.writer.RecordBackdoor(decision, tracePath); err != nil {
			return fmt.Errorf("%w: %v", rosaerr.ErrIO, err)
		}
		c.stats.Get(rosastats.BackdoorsTotal).Add(1)
		fp := findings.Fingerprint(decision)
		if !c.seenFindingFingerprints[fp] {
			c.seenFindingFingerprints[fp] = true
			c.stats.Get(rosastats.BackdoorsUnique).Add(1)
		}
	}
	return nil
}

// selectCluster picks the cluster minimizing the nearest-member distance
// to p under criterion/metric, ties broken by cluster UID (spec.md §4.7).
func selectCluster(p trace.Pair, clusters []*cluster.Cluster, criterion distance.Criterion, metric distance.Metric) (*cluster.Cluster, error) {
	if len(clusters) == 0 {
		return nil, fmt.Errorf("%w: no clusters to select from", rosaerr.ErrInternal)
	}
	type candidate struct {
		cl    *cluster.Cluster
		value int
	}
	var candidates []candidate
	for _, cl := range clusters {
		best := -1
		for _, member := range cl.Members {
			value, _, err := cluster.Evaluate(criterion, metric, p.Trace, member.Trace)
			if err != nil {
				return nil, err
			}
			if best == -1 || value < best {
				best = value
			}
		}
		candidates = append(candidates, candidate{cl, best})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].value != candidates[j].value {
			return candidates[i].value < candidates[j].value
		}
		return candidates[i].cl.UID < candidates[j].cl.UID
	})
	return candidates[0].cl, nil
}

// checkMainAlive enforces spec.md §7's fatal/warning split: the main
// instance dying is fatal, a secondary instance dying only warns.
func (c *Campaign) checkMainAlive() error {
	for _, a := range c.adapters {
		reporter, ok := a.(adapter.StatusReporter)
		if !ok {
			continue
		}
		status, err := reporter.Status()
		if err != nil {
			log.Errorf("[%s] status check failed: %v", a.Name(), err)
			continue
		}
		if status != adapter.Stopped {
			continue
		}
		if a.Name() == adapter.MainName {
			return fmt.Errorf("%w: main fuzzer instance %q is no longer running", rosaerr.ErrAdapter, a.Name())
		}
		log.Errorf("[%s] fuzzer instance is no longer running", a.Name())
	}
	return nil
}

// appendStatsRow writes one stats.csv row. cause is non-empty only at the
// collecting -> clustering transition, where it names the seed-end
// condition that fired (spec.md §8 scenario 6).
func (c *Campaign) appendStatsRow(cause string) {
	row := findings.StatsRow{
		Seconds:         time.Since(c.start).Seconds(),
		TotalTraces:     c.statValue(rosastats.TotalTraces),
		BackdoorsUnique: c.statValue(rosastats.BackdoorsUnique),
		BackdoorsTotal:  c.statValue(rosastats.BackdoorsTotal),
		EdgeCoverage:    c.cov.edgeFraction(),
		SyscallCoverage: c.cov.syscallFraction(),
		Cause:           cause,
	}
	if err := c.writer.AppendStatsRow(row); err != nil {
		log.Errorf("failed to append stats.csv row: %v", err)
	}
}

func (c *Campaign) statValue(name string) int64 {
	if v := c.stats.Get(name); v != nil {
		return v.Value()
	}
	return 0
}

func (c *Campaign) pollInterval() time.Duration {
	ms := c.cfg.PollIntervalMS
	if ms <= 0 {
		ms = config.DefaultPollIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Campaign) shutdown() {
	c.phase = Stopped
	for _, a := range c.adapters {
		if err := a.Stop(); err != nil {
			log.Errorf("[%s] failed to stop: %v", a.Name(), err)
		}
	}
	c.appendStatsRow("")
	log.Logf(0, "stopped")
}

// sleep waits for d or ctx cancellation, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
