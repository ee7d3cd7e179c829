package charts

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/Qovery/engine-sub003/internal/util/async"
)

// Level is one dependency stage of a plan: charts with no ordering
// among themselves but a hard completion barrier before the next level.
type Level struct {
	Name   string
	Charts []Chart
}

// Plan is the ordered list of levels a deployment walks through.
type Plan struct {
	Levels []Level
}

// Sequencer executes plans level by level through a Pipeline. With
// parallel set, charts inside one level run concurrently.
type Sequencer struct {
	pipeline *Pipeline
	parallel bool
	log      logr.Logger
}

// NewSequencer creates a Sequencer over the given pipeline.
func NewSequencer(pipeline *Pipeline, parallel bool, log logr.Logger) *Sequencer {
	return &Sequencer{pipeline: pipeline, parallel: parallel, log: log}
}

// Deploy runs the plan's levels in order. Charts in a failing level all
// run to completion, but no later level starts.
func (s *Sequencer) Deploy(ctx context.Context, plan *Plan) error {
	for i := range plan.Levels {
		if err := s.runLevel(ctx, &plan.Levels[i], i); err != nil {
			return err
		}
	}
	return nil
}

// Destroy runs the plan's levels in reverse order, so charts are torn
// down before anything they depend on.
func (s *Sequencer) Destroy(ctx context.Context, plan *Plan) error {
	for i := len(plan.Levels) - 1; i >= 0; i-- {
		if err := s.runLevel(ctx, &plan.Levels[i], i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) runLevel(ctx context.Context, level *Level, index int) error {
	name := level.Name
	if name == "" {
		name = fmt.Sprintf("level %d", index+1)
	}
	log := s.log.WithValues("level", name)
	log.Info("starting level", "charts", len(level.Charts))

	var err error
	if s.parallel && len(level.Charts) > 1 {
		err = s.runConcurrent(ctx, level.Charts)
	} else {
		err = s.runSequential(ctx, level.Charts)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	log.Info("level complete")
	return nil
}

// runSequential runs every chart even when an earlier sibling failed,
// then reports all failures together.
func (s *Sequencer) runSequential(ctx context.Context, charts []Chart) error {
	var errs []error
	for _, chart := range charts {
		if err := s.pipeline.Run(ctx, chart); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", chart.Info().Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Sequencer) runConcurrent(ctx context.Context, charts []Chart) error {
	tasks := make([]async.Task, 0, len(charts))
	for _, chart := range charts {
		tasks = append(tasks, async.Task{
			Name: chart.Info().Name,
			Func: func(ctx context.Context) error {
				return s.pipeline.Run(ctx, chart)
			},
		})
	}
	return async.RunParallel(ctx, tasks)
}
