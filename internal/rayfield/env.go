package rayfield

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// Config is the YAML run description. Horizontal coordinates are in km in
// the file and converted to meters when the run tables are built; depths
// and step sizes are in meters, angles in degrees.
type Config struct {
	Title     string `yaml:"title"`
	Frequency Real   `yaml:"frequency"`
	Geometry  string `yaml:"geometry"` // 2d, hybrid, 3d
	Run       string `yaml:"run"`      // ray, coherent, semicoherent, eigen, arrivals

	Beam     BeamConfig     `yaml:"beam"`
	Source   SourceConfig   `yaml:"source"`
	Receiver ReceiverConfig `yaml:"receiver"`
	Angles   AnglesConfig   `yaml:"angles"`

	Top    BoundaryConfig `yaml:"top"`
	Bottom BoundaryConfig `yaml:"bottom"`

	Profile ProfileConfig `yaml:"profile"`

	Pattern []PatternPoint `yaml:"pattern"`

	MaxSteps        int32 `yaml:"max_steps"`
	ArrivalMemoryMB int64 `yaml:"arrival_memory_mb"`
}

// VecSpec describes one coordinate table: either the full value list, or
// two endpoints plus a count to span between them.
type VecSpec struct {
	N      int32  `yaml:"n"`
	Values []Real `yaml:"values"`
}

// Resolve expands the spec into the concrete table. Two values with a
// larger count are spanned linearly; otherwise the list is used as given.
func (v *VecSpec) Resolve(name string) ([]Real, error) {
	if len(v.Values) == 0 {
		if v.N > 0 {
			return nil, fmt.Errorf("%s: count %d given without endpoint values", name, v.N)
		}
		return nil, nil
	}
	out := v.Values
	if len(v.Values) == 2 && v.N > 2 {
		out = floats.Span(make([]Real, v.N), v.Values[0], v.Values[1])
	} else if v.N > 0 && int(v.N) != len(v.Values) {
		return nil, fmt.Errorf("%s: count %d does not match %d values", name, v.N, len(v.Values))
	}
	for i := 1; i < len(out); i++ {
		if out[i] <= out[i-1] {
			return nil, fmt.Errorf("%s: values not strictly increasing at index %d", name, i)
		}
	}
	return out, nil
}

type BeamConfig struct {
	Type   string `yaml:"type"` // geometric, curved
	BoxXKm Real   `yaml:"box_x_km"`
	BoxYKm Real   `yaml:"box_y_km"`
	BoxZ   Real   `yaml:"box_z"`
	Step   Real   `yaml:"step"`
}

type SourceConfig struct {
	XKm VecSpec `yaml:"x_km"`
	YKm VecSpec `yaml:"y_km"`
	Z   VecSpec `yaml:"z"`
}

type ReceiverConfig struct {
	RangeKm    VecSpec `yaml:"range_km"`
	Z          VecSpec `yaml:"z"`
	BearingDeg VecSpec `yaml:"bearing_deg"`
}

type AnglesConfig struct {
	DeclinationDeg VecSpec `yaml:"declination_deg"`
	BearingDeg     VecSpec `yaml:"bearing_deg"`

	// Single selects one declination index to trace instead of the fan;
	// negative means the full fan.
	Single *int32 `yaml:"single"`
}

type BoundaryConfig struct {
	Cond string `yaml:"cond"` // vacuum, rigid, halfspace
	Cp   Real   `yaml:"cp"`
	Attn Real   `yaml:"attn"`
	Rho  Real   `yaml:"rho"`

	Curve string `yaml:"curve"` // flat, curved

	// Depth makes a level boundary spanning the beam box. Points (2D) or
	// Grid (3D/hybrid) tabulate a terrain instead.
	Depth  *Real       `yaml:"depth"`
	Points [][2]Real   `yaml:"points"` // [range_km, depth]
	Grid   *GridConfig `yaml:"grid"`
}

type GridConfig struct {
	XKm    []Real   `yaml:"x_km"`
	YKm    []Real   `yaml:"y_km"`
	Depths [][]Real `yaml:"depths"` // Depths[ix][iy]
}

type ProfileConfig struct {
	// IsoSpeed makes a constant-speed medium; Z/C tabulate a depth profile.
	IsoSpeed Real   `yaml:"iso_speed"`
	Z        []Real `yaml:"z"`
	C        []Real `yaml:"c"`
	Attn     []Real `yaml:"attn"`
}

type PatternPoint struct {
	AngleDeg Real `yaml:"angle_deg"`
	Amp      Real `yaml:"amp"`
}

// LoadConfig reads and decodes a YAML run description. Unknown keys are
// rejected so typos fail loudly instead of silently defaulting.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &c, nil
}

func parseGeometry(s string) (GeomMode, error) {
	switch s {
	case "", "2d":
		return Geom2D, nil
	case "hybrid":
		return GeomHybrid, nil
	case "3d":
		return Geom3D, nil
	}
	return 0, fmt.Errorf("config: unknown geometry %q", s)
}

func parseRun(s string) (RunMode, error) {
	switch s {
	case "ray":
		return RunRay, nil
	case "", "coherent":
		return RunCoherent, nil
	case "semicoherent":
		return RunSemiCoherent, nil
	case "eigen":
		return RunEigen, nil
	case "arrivals":
		return RunArrivals, nil
	}
	return 0, fmt.Errorf("config: unknown run mode %q", s)
}

func parseBeamType(s string) (BeamType, error) {
	switch s {
	case "", "geometric":
		return BeamGeometric, nil
	case "curved":
		return BeamCurved, nil
	}
	return 0, fmt.Errorf("config: unknown beam type %q", s)
}

func parseCond(s string) (BoundaryCond, error) {
	switch s {
	case "vacuum":
		return CondVacuum, nil
	case "rigid":
		return CondRigid, nil
	case "", "halfspace":
		return CondHalfspace, nil
	}
	return 0, fmt.Errorf("config: unknown boundary condition %q", s)
}

func parseCurve(s string) (BdryCurve, error) {
	switch s {
	case "", "flat":
		return BdryFlat, nil
	case "curved":
		return BdryCurved, nil
	}
	return 0, fmt.Errorf("config: unknown boundary curve %q", s)
}

func kmToM(v []Real) []Real {
	out := make([]Real, len(v))
	for i, x := range v {
		out[i] = 1000 * x
	}
	return out
}

// fullCircle reports whether a bearing table closes on itself: the last
// entry is the first plus a full turn.
func fullCircle(deg []Real) bool {
	n := len(deg)
	return n > 1 && mgl64.FloatEqualThreshold(deg[n-1], deg[0]+360, 1e-9)
}

func spacing(v []Real) Real {
	if len(v) < 2 {
		return 0
	}
	return (v[len(v)-1] - v[0]) / Real(len(v)-1)
}

// Build turns the decoded config into validated run tables.
func (c *Config) Build() (*Params, error) {
	mode, err := parseGeometry(c.Geometry)
	if err != nil {
		return nil, err
	}
	runMode, err := parseRun(c.Run)
	if err != nil {
		return nil, err
	}
	beamType, err := parseBeamType(c.Beam.Type)
	if err != nil {
		return nil, err
	}
	if c.Frequency <= 0 {
		return nil, fmt.Errorf("config: frequency must be positive, got %g", c.Frequency)
	}

	p := &Params{
		Mode:     mode,
		Freq:     &FreqInfo{Freq0: c.Frequency},
		MaxSteps: c.MaxSteps,
	}
	if c.ArrivalMemoryMB > 0 {
		p.ArrMemory = c.ArrivalMemoryMB << 20
	}

	step := c.Beam.Step
	if step <= 0 {
		step = c.Beam.BoxZ / 10
		slog.Info("step size defaulted", "step", step)
	}
	boxY := 1000 * c.Beam.BoxYKm
	if mode == Geom2D {
		boxY = 0
	}
	p.Beam = &Beam{
		Mode:   runMode,
		Type:   beamType,
		Box:    Box{X: 1000 * c.Beam.BoxXKm, Y: boxY, Z: c.Beam.BoxZ},
		Deltas: step,
	}
	if p.Beam.Box.X <= 0 || p.Beam.Box.Z <= 0 {
		return nil, fmt.Errorf("config: beam box extents must be positive")
	}
	if mode != Geom2D && p.Beam.Box.Y <= 0 {
		return nil, fmt.Errorf("config: 3D run needs a positive box_y_km")
	}

	if p.Pos, err = c.buildPosition(mode); err != nil {
		return nil, err
	}
	if p.Ang, err = c.buildAngles(mode); err != nil {
		return nil, err
	}

	if err := c.buildBoundaries(p); err != nil {
		return nil, err
	}
	if err := c.buildMedium(p); err != nil {
		return nil, err
	}
	c.clampDepths(p)

	if len(c.Pattern) > 0 {
		bp := &BeamPattern{}
		for i, pt := range c.Pattern {
			if i > 0 && pt.AngleDeg <= c.Pattern[i-1].AngleDeg {
				return nil, fmt.Errorf("config: pattern angles not increasing at index %d", i)
			}
			bp.AngleDeg = append(bp.AngleDeg, pt.AngleDeg)
			bp.Amp = append(bp.Amp, pt.Amp)
		}
		p.Pat = bp
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Config) buildPosition(mode GeomMode) (*Position, error) {
	pos := &Position{}
	var err error
	if pos.Sz, err = c.Source.Z.Resolve("source.z"); err != nil {
		return nil, err
	}
	var rkm, theta []Real
	if rkm, err = c.Receiver.RangeKm.Resolve("receiver.range_km"); err != nil {
		return nil, err
	}
	pos.Rr = kmToM(rkm)
	if pos.Rz, err = c.Receiver.Z.Resolve("receiver.z"); err != nil {
		return nil, err
	}
	if mode != Geom2D {
		var xkm, ykm []Real
		if xkm, err = c.Source.XKm.Resolve("source.x_km"); err != nil {
			return nil, err
		}
		if ykm, err = c.Source.YKm.Resolve("source.y_km"); err != nil {
			return nil, err
		}
		pos.Sx = kmToM(xkm)
		pos.Sy = kmToM(ykm)
		if theta, err = c.Receiver.BearingDeg.Resolve("receiver.bearing_deg"); err != nil {
			return nil, err
		}
		// a closed bearing sweep would double-count the seam cell
		if fullCircle(theta) {
			slog.Info("dropping duplicate receiver bearing at full circle",
				"bearing", theta[len(theta)-1])
			theta = theta[:len(theta)-1]
		}
		pos.Theta = theta
	} else {
		pos.Sx = []Real{0}
		pos.Sy = []Real{0}
	}
	pos.DeltaR = spacing(pos.Rr)
	pos.DeltaTheta = spacing(pos.Theta)
	return pos, nil
}

func (c *Config) buildAngles(mode GeomMode) (*Angles, error) {
	ang := &Angles{ISingleAlpha: -1}
	decl, err := c.Angles.DeclinationDeg.Resolve("angles.declination_deg")
	if err != nil {
		return nil, err
	}
	if len(decl) == 0 {
		return nil, fmt.Errorf("config: angles.declination_deg is required")
	}
	ang.Alpha = make([]Real, len(decl))
	for i, d := range decl {
		ang.Alpha[i] = DegRad * d
	}
	ang.Dalpha = spacing(ang.Alpha)
	if c.Angles.Single != nil {
		s := *c.Angles.Single
		if s < 0 || int(s) >= len(decl) {
			return nil, fmt.Errorf("config: angles.single %d out of range [0,%d)", s, len(decl))
		}
		ang.ISingleAlpha = s
	}
	if mode != Geom2D {
		beta, err := c.Angles.BearingDeg.Resolve("angles.bearing_deg")
		if err != nil {
			return nil, err
		}
		if len(beta) == 0 {
			return nil, fmt.Errorf("config: angles.bearing_deg is required for 3D runs")
		}
		if fullCircle(beta) {
			slog.Info("dropping duplicate launch bearing at full circle",
				"bearing", beta[len(beta)-1])
			beta = beta[:len(beta)-1]
		}
		ang.Beta = make([]Real, len(beta))
		for i, d := range beta {
			ang.Beta[i] = DegRad * d
		}
		ang.Dbeta = spacing(ang.Beta)
	}
	return ang, nil
}

func (bc *BoundaryConfig) halfspace() (HalfSpace, error) {
	cond, err := parseCond(bc.Cond)
	if err != nil {
		return HalfSpace{}, err
	}
	hs := HalfSpace{Cond: cond}
	if cond == CondHalfspace {
		if bc.Cp <= 0 || bc.Rho <= 0 {
			return HalfSpace{}, fmt.Errorf("config: halfspace needs positive cp and rho")
		}
		hs.Cp = complex(bc.Cp, bc.Attn)
		hs.Rho = bc.Rho
	}
	return hs, nil
}

// nodes2D tabulates the boundary polyline, synthesizing a level span over
// the beam box when only a depth was given. The span overshoots the box so
// the locate never walks off the table while the ray is still alive.
func (bc *BoundaryConfig) nodes2D(box Box) ([]mgl64.Vec2, error) {
	if bc.Depth != nil {
		r := 2 * box.X
		return []mgl64.Vec2{{-r, *bc.Depth}, {r, *bc.Depth}}, nil
	}
	if len(bc.Points) < 2 {
		return nil, fmt.Errorf("config: boundary needs a depth or at least 2 points")
	}
	nodes := make([]mgl64.Vec2, len(bc.Points))
	for i, pt := range bc.Points {
		nodes[i] = mgl64.Vec2{1000 * pt[0], pt[1]}
	}
	return nodes, nil
}

func (bc *BoundaryConfig) build2D(box Box, isTop bool) (*Boundary2D, error) {
	curve, err := parseCurve(bc.Curve)
	if err != nil {
		return nil, err
	}
	nodes, err := bc.nodes2D(box)
	if err != nil {
		return nil, err
	}
	return NewBoundary2D(nodes, curve, isTop)
}

func (bc *BoundaryConfig) build3D(box Box, isTop bool) (*Boundary3D, error) {
	curve, err := parseCurve(bc.Curve)
	if err != nil {
		return nil, err
	}
	if bc.Depth != nil {
		x, y := 2*box.X, 2*box.Y
		z := *bc.Depth
		nodes := []mgl64.Vec3{
			{-x, -y, z}, {-x, y, z},
			{x, -y, z}, {x, y, z},
		}
		return NewBoundary3D(2, 2, nodes, curve, isTop)
	}
	g := bc.Grid
	if g == nil {
		return nil, fmt.Errorf("config: 3D boundary needs a depth or a grid")
	}
	nx, ny := int32(len(g.XKm)), int32(len(g.YKm))
	if int32(len(g.Depths)) != nx {
		return nil, fmt.Errorf("config: boundary grid wants %d depth rows, got %d", nx, len(g.Depths))
	}
	nodes := make([]mgl64.Vec3, 0, nx*ny)
	for ix := int32(0); ix < nx; ix++ {
		if int32(len(g.Depths[ix])) != ny {
			return nil, fmt.Errorf("config: boundary grid row %d wants %d depths, got %d",
				ix, ny, len(g.Depths[ix]))
		}
		for iy := int32(0); iy < ny; iy++ {
			nodes = append(nodes, mgl64.Vec3{1000 * g.XKm[ix], 1000 * g.YKm[iy], g.Depths[ix][iy]})
		}
	}
	return NewBoundary3D(nx, ny, nodes, curve, isTop)
}

func (c *Config) buildBoundaries(p *Params) error {
	var err error
	if p.TopHS, err = c.Top.halfspace(); err != nil {
		return err
	}
	if p.BotHS, err = c.Bottom.halfspace(); err != nil {
		return err
	}
	if p.Mode == Geom2D {
		if p.Top2D, err = c.Top.build2D(p.Beam.Box, true); err != nil {
			return err
		}
		if p.Bot2D, err = c.Bottom.build2D(p.Beam.Box, false); err != nil {
			return err
		}
		return nil
	}
	if p.Top3D, err = c.Top.build3D(p.Beam.Box, true); err != nil {
		return err
	}
	p.Bot3D, err = c.Bottom.build3D(p.Beam.Box, false)
	return err
}

func (c *Config) buildMedium(p *Params) error {
	pc := &c.Profile
	if pc.IsoSpeed > 0 {
		if len(pc.Z) > 0 {
			return fmt.Errorf("config: profile has both iso_speed and a table")
		}
		p.Med2D = IsoMedium{C: complex(pc.IsoSpeed, 0)}
		p.Med3D = Iso3D{C: complex(pc.IsoSpeed, 0)}
		return nil
	}
	if len(pc.Z) != len(pc.C) {
		return fmt.Errorf("config: profile wants matched z/c lists, got %d/%d", len(pc.Z), len(pc.C))
	}
	if len(pc.Attn) > 0 && len(pc.Attn) != len(pc.C) {
		return fmt.Errorf("config: profile attn wants %d entries, got %d", len(pc.C), len(pc.Attn))
	}
	cs := make([]complex128, len(pc.C))
	for i, cr := range pc.C {
		ci := Real(0)
		if len(pc.Attn) > 0 {
			ci = pc.Attn[i]
		}
		cs[i] = complex(cr, ci)
	}
	prof, err := NewProfileMedium(pc.Z, cs)
	if err != nil {
		return err
	}
	p.Med2D = prof
	p.Med3D = prof.As3D()
	return nil
}

// clampDepths pulls source and receiver depths that fall outside a level
// waveguide back inside it. Terrain boundaries are left to the per-ray
// launch check.
func (c *Config) clampDepths(p *Params) {
	if c.Top.Depth == nil || c.Bottom.Depth == nil {
		return
	}
	zTop, zBot := *c.Top.Depth, *c.Bottom.Depth
	eps := 1e-4 * (zBot - zTop)
	clamp := func(zs []Real, what string) {
		for i, z := range zs {
			if z <= zTop {
				slog.Warn("depth clamped to waveguide", "what", what, "from", z, "to", zTop+eps)
				zs[i] = zTop + eps
			} else if z >= zBot {
				slog.Warn("depth clamped to waveguide", "what", what, "from", z, "to", zBot-eps)
				zs[i] = zBot - eps
			}
		}
	}
	clamp(p.Pos.Sz, "source depth")
	clamp(p.Pos.Rz, "receiver depth")
}
