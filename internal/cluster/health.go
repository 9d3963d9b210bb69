// Package cluster aggregates node health across the whole SeaweedFS deployment.
package cluster

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/node"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/probe"
)

// HealthChecker checks one node.
type HealthChecker interface {
	Check(ctx context.Context, id node.Identity) probe.Report
}

// NodeHealth is the health of one node in a cluster report.
type NodeHealth struct {
	Identity node.Identity
	Report   probe.Report
}

// Summary counts verdicts.
type Summary struct {
	Healthy   int
	Unhealthy int
	Unknown   int
}

// Report is the health of every known node, in table order.
type Report struct {
	Nodes   []NodeHealth
	Summary Summary
}

// Aggregator checks all nodes of a table concurrently.
type Aggregator struct {
	table    *node.Table
	resolver *node.Resolver
	checker  HealthChecker
	limit    int
	logger   *zap.Logger
}

// NewAggregator creates an aggregator. limit bounds concurrent checks; a
// non-positive limit checks one node at a time.
func NewAggregator(table *node.Table, checker HealthChecker, limit int, logger *zap.Logger) *Aggregator {
	if limit <= 0 {
		limit = 1
	}
	return &Aggregator{
		table:    table,
		resolver: node.NewResolver(table),
		checker:  checker,
		limit:    limit,
		logger:   logger,
	}
}

// Check probes every node in the table. Each result is written to its own
// slot, so a slow or failing node never affects another node's verdict.
func (a *Aggregator) Check(ctx context.Context) Report {
	names := a.table.Names()
	nodes := make([]NodeHealth, len(names))

	var g errgroup.Group
	g.SetLimit(a.limit)

	for i, short := range names {
		id := a.resolver.Resolve(short)
		g.Go(func() error {
			nodes[i] = NodeHealth{Identity: id, Report: a.checker.Check(ctx, id)}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Nodes: nodes}
	for _, n := range nodes {
		switch n.Report.Verdict {
		case probe.VerdictHealthy:
			report.Summary.Healthy++
		case probe.VerdictUnhealthy:
			report.Summary.Unhealthy++
		case probe.VerdictUnknown:
			report.Summary.Unknown++
		}
	}

	a.logger.Debug("cluster health checked",
		zap.Int("nodes", len(nodes)),
		zap.Int("healthy", report.Summary.Healthy),
		zap.Int("unhealthy", report.Summary.Unhealthy),
	)
	return report
}
