package rayfield

import "fmt"

// Params groups the validated, read-only tables a run traces against. One
// Params is shared by every worker; nothing in it is mutated after Validate.
type Params struct {
	Mode GeomMode

	Pos  *Position
	Ang  *Angles
	Freq *FreqInfo
	Beam *Beam
	Pat  *BeamPattern

	TopHS, BotHS HalfSpace

	// 2D tables (Geom2D)
	Top2D, Bot2D *Boundary2D
	Med2D        Medium2D

	// 3D tables (Geom3D and GeomHybrid)
	Top3D, Bot3D *Boundary3D
	Med3D        Medium3D

	MaxSteps int32

	// ArrMemory bounds the arrival arena in bytes; per-cell capacity is
	// derived from it at run start.
	ArrMemory int64
}

// Validate checks the cross-table requirements that the YAML loader cannot
// see in isolation.
func (p *Params) Validate() error {
	if p.Pos == nil || p.Ang == nil || p.Freq == nil || p.Beam == nil {
		return fmt.Errorf("params: missing table")
	}
	if p.Pos.NSz() == 0 || p.Ang.NAlpha() == 0 {
		return fmt.Errorf("params: need at least one source depth and one launch angle")
	}
	if p.Freq.Freq0 <= 0 {
		return fmt.Errorf("params: frequency must be positive, got %g", p.Freq.Freq0)
	}
	switch p.Mode {
	case Geom2D:
		if p.Top2D == nil || p.Bot2D == nil || p.Med2D == nil {
			return fmt.Errorf("params: 2D run needs 2D boundaries and medium")
		}
	case GeomHybrid:
		if p.Top3D == nil || p.Bot3D == nil || p.Med2D == nil {
			return fmt.Errorf("params: hybrid run needs 3D boundaries and a 2D medium")
		}
		if p.Pos.NSx() == 0 || p.Pos.NSy() == 0 || p.Ang.NBeta() == 0 {
			return fmt.Errorf("params: hybrid run needs source x/y and azimuth tables")
		}
	case Geom3D:
		if p.Top3D == nil || p.Bot3D == nil || p.Med3D == nil {
			return fmt.Errorf("params: 3D run needs 3D boundaries and medium")
		}
		if p.Pos.NSx() == 0 || p.Pos.NSy() == 0 || p.Ang.NBeta() == 0 {
			return fmt.Errorf("params: 3D run needs source x/y and azimuth tables")
		}
	}
	if p.Pat == nil {
		p.Pat = Omni()
	}
	if p.MaxSteps <= 0 {
		p.MaxSteps = MaxSteps
	}
	if p.ArrMemory <= 0 {
		p.ArrMemory = 64 << 20
	}
	return nil
}

// forWorker returns a copy of the params whose medium samplers are private
// to the caller. The profile sampler carries a segment hint across queries;
// sharing one instance between workers would race on it.
func (p *Params) forWorker() *Params {
	cp := *p
	if m, ok := cp.Med2D.(cloner2D); ok {
		cp.Med2D = m.clone2D()
	}
	if m, ok := cp.Med3D.(cloner3D); ok {
		cp.Med3D = m.clone3D()
	}
	return &cp
}
