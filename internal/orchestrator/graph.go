package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"stocksync/internal/logger"
	"stocksync/internal/metrics"
)

type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

type StageReport struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
	DurationMs int64       `json:"durationMs"`
}

// Stage is one node of the run graph. A stage starts once every stage in
// Requires has succeeded and every stage in After present in the graph has
// finished, whatever its outcome. A stage whose requirement failed or was
// skipped is skipped.
type Stage struct {
	Name     string
	Requires []string
	After    []string
	Run      func(ctx context.Context) error
}

type graph struct {
	stages []Stage
	index  map[string]int
	waves  [][]int
}

// newGraph validates the stages and layers them into waves: every stage runs
// in a later wave than all its dependencies.
func newGraph(stages []Stage) (*graph, error) {
	g := &graph{stages: stages, index: make(map[string]int, len(stages))}
	for i, s := range stages {
		if _, dup := g.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate stage %q", s.Name)
		}
		g.index[s.Name] = i
	}

	deps := make([][]int, len(stages))
	for i, s := range stages {
		for _, r := range s.Requires {
			j, ok := g.index[r]
			if !ok {
				return nil, fmt.Errorf("stage %q requires unknown stage %q", s.Name, r)
			}
			deps[i] = append(deps[i], j)
		}
		for _, a := range s.After {
			if j, ok := g.index[a]; ok {
				deps[i] = append(deps[i], j)
			}
		}
	}

	level := make([]int, len(stages))
	placed := 0
	for placed < len(stages) {
		var wave []int
		for i := range stages {
			if level[i] != 0 {
				continue
			}
			ready := true
			for _, j := range deps[i] {
				if level[j] == 0 {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, i)
			}
		}
		if len(wave) == 0 {
			return nil, fmt.Errorf("stage graph has a cycle")
		}
		for _, i := range wave {
			level[i] = len(g.waves) + 1
		}
		g.waves = append(g.waves, wave)
		placed += len(wave)
	}
	return g, nil
}

// Waves returns the stage names of each wave.
func (g *graph) Waves() [][]string {
	out := make([][]string, len(g.waves))
	for i, w := range g.waves {
		for _, j := range w {
			out[i] = append(out[i], g.stages[j].Name)
		}
	}
	return out
}

// run executes the graph wave by wave, stages of one wave concurrently. Stage
// errors and panics are captured in the stage's report and never stop
// independent stages.
func (g *graph) run(ctx context.Context, logger *logger.Logger) []StageReport {
	reports := make([]StageReport, len(g.stages))
	for i, s := range g.stages {
		reports[i] = StageReport{Name: s.Name}
	}

	for _, wave := range g.waves {
		var eg errgroup.Group
		for _, i := range wave {
			s := g.stages[i]
			if blocked := g.unmet(s, reports); blocked != "" {
				reports[i].Status = StageSkipped
				reports[i].Error = fmt.Sprintf("required stage %s did not succeed", blocked)
				logger.Warn("Skipping stage %s: %s", s.Name, reports[i].Error)
				continue
			}
			eg.Go(func() error {
				start := time.Now()
				logger.Info("Stage %s started", s.Name)
				err := runStage(ctx, s)

				reports[i].StartedAt = start
				reports[i].DurationMs = time.Since(start).Milliseconds()
				reports[i].Status = StageSucceeded
				if err != nil {
					reports[i].Status = StageFailed
					reports[i].Error = err.Error()
					logger.Error("Stage %s failed after %s: %v", s.Name, time.Since(start), err)
				} else {
					logger.Info("Stage %s finished in %s", s.Name, time.Since(start))
				}
				metrics.StageDuration.WithLabelValues(s.Name, string(reports[i].Status)).Observe(time.Since(start).Seconds())
				return nil
			})
		}
		_ = eg.Wait()
	}
	return reports
}

func (g *graph) unmet(s Stage, reports []StageReport) string {
	for _, r := range s.Requires {
		if reports[g.index[r]].Status != StageSucceeded {
			return r
		}
	}
	return ""
}

func runStage(ctx context.Context, s Stage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in stage %s: %v", s.Name, rec)
		}
	}()
	return s.Run(ctx)
}
