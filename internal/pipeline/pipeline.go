// Package pipeline runs a planning job end to end: protocol and case load,
// problem construction, captured solve, evaluation, and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/arcplan/internal/config"
	"github.com/roach88/arcplan/internal/dataset"
	"github.com/roach88/arcplan/internal/evaluate"
	"github.com/roach88/arcplan/internal/leafseq"
	"github.com/roach88/arcplan/internal/model"
	"github.com/roach88/arcplan/internal/notify"
	"github.com/roach88/arcplan/internal/objective"
	"github.com/roach88/arcplan/internal/progress"
	"github.com/roach88/arcplan/internal/protocol"
	"github.com/roach88/arcplan/internal/solver"
	"github.com/roach88/arcplan/internal/store"
)

// Pipeline holds the collaborators of a run.
type Pipeline struct {
	Store        *store.RunStore
	Orchestrator *solver.Orchestrator
	// Cases and Protocols build sources for a config's directories.
	Cases     func(dataDir string) dataset.Source
	Protocols func(protocolDir string) protocol.Source
	// Publisher fans progress out to subscribers; nil disables it.
	Publisher *notify.Publisher
	// PTY attaches solvers to a pseudo-terminal.
	PTY bool
	Now func() time.Time
}

// New returns a pipeline using the directory sources.
func New(st *store.RunStore, orch *solver.Orchestrator) *Pipeline {
	return &Pipeline{
		Store:        st,
		Orchestrator: orch,
		Cases:        func(dir string) dataset.Source { return dataset.NewDirSource(dir) },
		Protocols:    func(dir string) protocol.Source { return protocol.NewDirSource(dir) },
		Now:          time.Now,
	}
}

// Execute runs a started job to a terminal state. Failures are recorded on
// the run; the returned error repeats what was recorded. Terminal writes
// outlive ctx, so a cancelled run still ends up failed.
func (p *Pipeline) Execute(ctx context.Context, id string, cfg config.RunConfig) error {
	logger := slog.With("run_id", id)
	final := context.WithoutCancel(ctx)
	p.publishStatus(final, id, store.StatusStarted, "")

	res, err := p.execute(ctx, id, cfg, logger)
	if err != nil {
		logger.Error("run failed", "error", err)
		p.fail(final, id, err, logger)
		return err
	}

	if err := p.Store.Save(final, id, res); err != nil {
		logger.Error("save result", "error", err)
		p.fail(final, id, err, logger)
		return err
	}
	if res.Error != "" {
		logger.Warn("run finished without a solution", "error", res.Error)
		p.publishStatus(final, id, store.StatusFailed, res.Error)
		return errors.New(res.Error)
	}
	logger.Info("run completed")
	p.publishStatus(final, id, store.StatusCompleted, "")
	return nil
}

func (p *Pipeline) fail(ctx context.Context, id string, err error, logger *slog.Logger) {
	if ferr := p.Store.Fail(ctx, id, err.Error()); ferr != nil {
		logger.Error("record failure", "error", ferr)
	}
	p.publishStatus(ctx, id, store.StatusFailed, err.Error())
}

func (p *Pipeline) execute(ctx context.Context, id string, cfg config.RunConfig, logger *slog.Logger) (*store.Result, error) {
	prot, err := protocol.Load(p.Protocols(cfg.ProtocolDir), cfg.ProtocolGlobalOpt, cfg.OptimizationProtocol())
	if err != nil {
		return nil, fmt.Errorf("load protocol: %w", err)
	}
	c, err := p.Cases(cfg.DataDir).Load(ctx, dataset.Request{
		PatientID:     cfg.PatientID,
		BeamIDs:       cfg.BeamIDs,
		VoxelFactors:  cfg.VoxelDownSampleFactors,
		BeamletFactor: cfg.BeamletDownSampleFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}

	prob := model.New()
	x := prob.AddVars("x", c.NumBeamlets(), model.Continuous, 0, model.Inf)
	b := &objective.Builder{Problem: prob, Case: c, Protocol: prot, X: x, Policy: cfg.UnknownObjectivePolicy}
	report, err := b.Build(protocol.ApplyOverrides(prot.Objectives, cfg.ObjectiveOverrides))
	if err != nil {
		return nil, fmt.Errorf("build objectives: %w", err)
	}
	vars, stats, err := leafseq.Build(prob, x, c.Beams, cfg.PerBeamMUUpperBound)
	if err != nil {
		return nil, fmt.Errorf("build deliverability constraints: %w", err)
	}
	logger.Info("problem built",
		"variables", prob.NumVars(),
		"constraints", prob.NumConstraints(),
		"integers", prob.NumIntegers(),
		"objectives", len(report.Applied),
		"skipped", len(report.Skipped))

	plan := &store.Plan{
		PatientID:      cfg.PatientID,
		BeamIDs:        c.BeamIDs(),
		PrescriptionGy: prot.Prescription(),
		NumFractions:   prot.NumFractions,
		Protocol:       prot.Name,
		Objectives:     &report,
		Deliverability: &stats,
	}

	outcome, err := p.solve(ctx, id, cfg, prob)
	if err != nil {
		if outcome == nil {
			return nil, err
		}
		return &store.Result{Trace: &outcome.Trace, Error: err.Error()}, nil
	}
	if !outcome.Succeeded() {
		msg := fmt.Sprintf("solver %s finished with status %s", outcome.Trace.Solver, outcome.Trace.Status)
		return &store.Result{Trace: &outcome.Trace, Error: msg}, nil
	}

	sol := outcome.Result.Solution
	intensity := prob.Values(x, sol)
	beams := vars.Extract(sol)
	dose, err := c.Dose(intensity, prot.NumFractions)
	if err != nil {
		return nil, fmt.Errorf("compute dose: %w", err)
	}

	ev := evaluate.New(c, dose)
	return &store.Result{
		Trace:    &outcome.Trace,
		DVH:      ev.DVHs(cfg.DVHStructures, cfg.DVHBins),
		Metrics:  ev.Metrics(cfg.Metrics),
		Clinical: ev.ClinicalTable(prot.ClinicalCriteria),
		Plan:     plan,
		Solution: store.NewSolution(intensity, beams),
		Dose:     dose,
	}, nil
}

// solve runs the orchestrator with solver output captured into the run log
// and progress stream.
func (p *Pipeline) solve(ctx context.Context, id string, cfg config.RunConfig, prob *model.Problem) (*solver.Outcome, error) {
	handler := progress.Tee{p.recorder(ctx, id)}
	if p.Publisher != nil {
		handler = append(handler, p.Publisher.Handler(id))
	}
	capture, err := progress.Start(handler, progress.Options{PTY: p.PTY, Now: p.Now})
	if err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}

	defer func() {
		if err := capture.Close(); err != nil {
			slog.Warn("capture close", "run_id", id, "error", err)
		}
	}()

	steps := solver.Plan(p.Orchestrator.Solvers, cfg.Solver, cfg.PrimaryParams(), cfg.SolverVerbose, cfg.FallbackSolver)
	return p.Orchestrator.Run(ctx, prob, steps, capture.Writer())
}

// recorder appends captured lines and samples to the run store. Output
// drained after cancellation is still recorded.
func (p *Pipeline) recorder(ctx context.Context, id string) progress.Handler {
	ctx = context.WithoutCancel(ctx)
	return progress.Funcs{
		OnLine: func(line string) {
			if err := p.Store.AppendLog(ctx, id, line); err != nil {
				slog.Warn("append log", "run_id", id, "error", err)
			}
		},
		OnSample: func(s progress.Sample) {
			if err := p.Store.AppendProgress(ctx, id, s); err != nil {
				slog.Warn("append progress", "run_id", id, "error", err)
			}
		},
	}
}

func (p *Pipeline) publishStatus(ctx context.Context, id string, status store.Status, msg string) {
	if p.Publisher == nil {
		return
	}
	if err := p.Publisher.PublishStatus(ctx, id, string(status), msg); err != nil {
		slog.Warn("publish status", "run_id", id, "error", err)
	}
}
