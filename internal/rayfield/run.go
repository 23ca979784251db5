package rayfield

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RayPath is one recorded trajectory (trajectory-only mode).
type RayPath struct {
	Info   RayInfo
	NSteps int32
	Org    Origin // hybrid marching plane; zero for other modes

	Pts2D []RayPt2D // 2D and hybrid
	Pts3D []RayPt3D // 3D
}

// Outputs collects everything a run produces. Partial results survive a
// failed run: deposits already made are never rolled back.
type Outputs struct {
	RunID uuid.UUID
	Arr   *ArrInfo
	Rays  []RayPath
}

// errorLog accumulates per-ray failures under one lock. A failed ray is
// recorded and the worker moves on to its next job; nothing is cancelled.
type errorLog struct {
	mu   sync.Mutex
	msgs []string
}

func (e *errorLog) add(err error) {
	e.mu.Lock()
	e.msgs = append(e.msgs, err.Error())
	e.mu.Unlock()
}

func (e *errorLog) err() error {
	if len(e.msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%d ray failure(s):\n%s", len(e.msgs), strings.Join(e.msgs, "\n"))
}

// Run traces every (source, launch-angle) job of the configured run with a
// pool of workers pulling from one shared job counter. workers <= 0 uses
// all CPUs. The arrival regime is fixed here from the worker count.
func Run(env *Params, workers int) (*Outputs, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := &Outputs{RunID: uuid.New()}
	nCells := env.Pos.NCells()
	if nCells < 1 {
		nCells = 1
	}
	arrBytes := int64(binary.Size(Arrival{}))
	maxNArr := int32(env.ArrMemory / (int64(nCells) * arrBytes))
	out.Arr = NewArrInfo(nCells, maxNArr, workers, env.Freq.Omega())

	jobs := NewJobCounter(TotalJobs(env.Mode, env.Pos, env.Ang))
	slog.Info("starting run",
		"run_id", out.RunID, "mode", env.Mode.String(),
		"run_type", env.Beam.Mode.String(), "workers", workers,
		"jobs", jobs.Total(), "max_arrivals_per_cell", out.Arr.MaxNArr)

	rayMode := env.Beam.Mode == RunRay
	if rayMode {
		out.Rays = make([]RayPath, jobs.Total())
	}

	var errs errorLog
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(env, jobs, out, &errs)
		}()
	}
	wg.Wait()
	slog.Info("run finished", "run_id", out.RunID, "elapsed", time.Since(start))

	return out, errs.err()
}

// capture converts a panic in collaborator code into a per-ray error so a
// numerical fault in one ray cannot take down the run.
func capture(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f()
}

// worker pulls jobs until the counter is exhausted. A ray that fails is
// logged and skipped; its partial deposits are kept.
func worker(env *Params, jobs *JobCounter, out *Outputs, errs *errorLog) {
	env = env.forWorker()
	stepper := MidpointStepper{StepSize: env.Beam.Deltas}
	refl := StdReflector{}

	switch env.Mode {
	case Geom2D:
		tr := NewTracer2D(env, stepper, refl)
		infl := NewGeoHatInfluence(env.Pos, env.Ang, env.Freq, out.Arr)
		for {
			job, ok := jobs.Next()
			if !ok {
				return
			}
			li, _ := JobIndices(job, env.Mode, env.Pos, env.Ang)
			if err := capture(func() error { return traceRay2D(tr, infl, li, job, out) }); err != nil {
				errs.add(fmt.Errorf("job %d %+v: %w", job, li, err))
			}
		}
	case GeomHybrid:
		tr := NewTracerHybrid(env, NewStepperHybrid(env.Beam.Deltas), refl)
		infl := NewGeoHatInfluence(env.Pos, env.Ang, env.Freq, out.Arr)
		for {
			job, ok := jobs.Next()
			if !ok {
				return
			}
			li, _ := JobIndices(job, env.Mode, env.Pos, env.Ang)
			if err := capture(func() error { return traceRayHybrid(tr, infl, li, job, out) }); err != nil {
				errs.add(fmt.Errorf("job %d %+v: %w", job, li, err))
			}
		}
	case Geom3D:
		tr := NewTracer3D(env, NewStepper3D(env.Beam.Deltas), NewReflector3D())
		infl := NewGeoHatInfluence3D(env.Pos, env.Ang, env.Freq, out.Arr)
		for {
			job, ok := jobs.Next()
			if !ok {
				return
			}
			li, _ := JobIndices(job, env.Mode, env.Pos, env.Ang)
			if err := capture(func() error { return traceRay3D(tr, infl, li, job, out) }); err != nil {
				errs.add(fmt.Errorf("job %d %+v: %w", job, li, err))
			}
		}
	}
}

func traceRay2D(tr *Tracer2D, infl Influence2D, li LaunchIndex, job int64, out *Outputs) error {
	p0, ok := tr.Init(li)
	if !ok {
		return nil
	}
	rayMode := out.Rays != nil
	var pts []RayPt2D
	if rayMode {
		pts = append(pts, p0)
	}

	deposits := tr.env.Beam.Mode.Deposits()
	var is int32
	for {
		p1, p2, n, err := tr.Update(p0)
		if err != nil {
			return err
		}
		if deposits {
			if err := infl.Apply(p0, p1, tr.Info()); err != nil {
				return err
			}
		}
		if rayMode {
			pts = append(pts, p1)
		}
		if n == 2 {
			if deposits {
				if err := infl.Apply(p1, p2, tr.Info()); err != nil {
					return err
				}
			}
			if rayMode {
				pts = append(pts, p2)
			}
			p0 = p2
		} else {
			p0 = p1
		}
		is += int32(n)
		if nSteps, stop := tr.Terminate(p0, is); stop {
			if rayMode {
				if int(nSteps) < len(pts) {
					pts = pts[:nSteps]
				}
				out.Rays[job] = RayPath{Info: tr.Info(), NSteps: nSteps, Pts2D: pts}
			}
			return nil
		}
	}
}

func traceRayHybrid(tr *TracerHybrid, infl Influence2D, li LaunchIndex, job int64, out *Outputs) error {
	p0, ok := tr.Init(li)
	if !ok {
		return nil
	}
	rayMode := out.Rays != nil
	var pts []RayPt2D
	if rayMode {
		pts = append(pts, p0)
	}

	deposits := tr.env.Beam.Mode.Deposits()
	var is int32
	for {
		p1, p2, n, err := tr.Update(p0)
		if err != nil {
			return err
		}
		if deposits {
			if err := infl.Apply(p0, p1, tr.Info()); err != nil {
				return err
			}
		}
		if rayMode {
			pts = append(pts, p1)
		}
		if n == 2 {
			if deposits {
				if err := infl.Apply(p1, p2, tr.Info()); err != nil {
					return err
				}
			}
			if rayMode {
				pts = append(pts, p2)
			}
			p0 = p2
		} else {
			p0 = p1
		}
		is += int32(n)
		if nSteps, stop := tr.Terminate(p0, is); stop {
			if rayMode {
				if int(nSteps) < len(pts) {
					pts = pts[:nSteps]
				}
				out.Rays[job] = RayPath{Info: tr.Info(), NSteps: nSteps, Org: tr.Origin(), Pts2D: pts}
			}
			return nil
		}
	}
}

func traceRay3D(tr *Tracer3D, infl Influence3D, li LaunchIndex, job int64, out *Outputs) error {
	p0, ok := tr.Init(li)
	if !ok {
		return nil
	}
	rayMode := out.Rays != nil
	var pts []RayPt3D
	if rayMode {
		pts = append(pts, p0)
	}

	deposits := tr.env.Beam.Mode.Deposits()
	var is int32
	for {
		p1, p2, n, err := tr.Update(p0)
		if err != nil {
			return err
		}
		if deposits {
			if err := infl.Apply(p0, p1, tr.Info()); err != nil {
				return err
			}
		}
		if rayMode {
			pts = append(pts, p1)
		}
		if n == 2 {
			if deposits {
				if err := infl.Apply(p1, p2, tr.Info()); err != nil {
					return err
				}
			}
			if rayMode {
				pts = append(pts, p2)
			}
			p0 = p2
		} else {
			p0 = p1
		}
		is += int32(n)
		if nSteps, stop := tr.Terminate(p0, is); stop {
			if rayMode {
				if int(nSteps) < len(pts) {
					pts = pts[:nSteps]
				}
				out.Rays[job] = RayPath{Info: tr.Info(), NSteps: nSteps, Pts3D: pts}
			}
			return nil
		}
	}
}
