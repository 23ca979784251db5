package rayfield

// BdryState2D pairs the memoized top and bottom segment contexts of one ray.
type BdryState2D struct {
	Top, Bot BdrySeg2D
}

// BdryState3D is the 3D/hybrid equivalent.
type BdryState3D struct {
	Top, Bot BdrySeg3D
}

// Stepper2D advances a ray by one numerical step and reports whether the
// step crossed the top and/or bottom boundary. Implementations must not
// mutate shared state; everything they touch is owned by the calling worker.
type Stepper2D interface {
	Step(p0 RayPt2D, bds *BdryState2D, med Medium2D, smallSteps *int32) (p1 RayPt2D, topRefl, botRefl bool, err error)
}

// Stepper3D is the 3D stepper contract.
type Stepper3D interface {
	Step(p0 RayPt3D, bds *BdryState3D, med Medium3D, smallSteps *int32) (p1 RayPt3D, topRefl, botRefl bool, err error)
}

// StepperHybrid advances a 2D ray marched inside a 3D ocean; boundary
// clamping happens against the 3D segment contexts through the origin frame.
type StepperHybrid interface {
	Step(p0 RayPt2D, org *Origin, bds *BdryState3D, med Medium2D, smallSteps *int32) (p1 RayPt2D, topRefl, botRefl bool, err error)
}

// MidpointStepper is the reference integrator: a midpoint step of the ray
// equations parameterized by arc length, with the step clamped to land just
// past a boundary when the trial step would cross it.
//
//	dx/ds   = c t        (t is slowness, c t is the unit direction)
//	dt/ds   = -grad c / c^2
//	dtau/ds = 1 / c      (complex c accumulates loss in the imaginary part)
//	dq/ds   = c p
//
// dp/ds involves the second normal derivative of the sound speed, which is
// identically zero for the piecewise-linear reference media; p is held.
type MidpointStepper struct {
	StepSize Real // nominal arc-length step in meters
}

// crossFrac returns the fraction of the step at which the signed distance
// crosses zero, given begin/end distances, and whether it crossed at all.
func crossFrac(d0, d1 Real) (Real, bool) {
	if d1 >= 0 || d0 <= 0 {
		return 1, false
	}
	return d0 / (d0 - d1), true
}

// smallStepFrac: a step clamped below this fraction of the nominal size
// counts toward the integrator-stall guard.
const smallStepFrac = 0.01

// stepOverhang pushes the clamped step slightly past the boundary so the
// crossing is observable as a negative end distance.
const stepOverhang = 1.0 + 1e-10

func (st MidpointStepper) advance2D(p0 RayPt2D, h Real, med Medium2D) (RayPt2D, error) {
	c0c, grad0, err := med.Sample(p0.X, p0.T)
	if err != nil {
		return RayPt2D{}, err
	}
	c0 := real(c0c)

	xm := p0.X.Add(p0.T.Mul(0.5 * h * c0))
	tm := p0.T.Sub(grad0.Mul(0.5 * h / (c0 * c0)))
	cmc, gradm, err := med.Sample(xm, tm)
	if err != nil {
		return RayPt2D{}, err
	}
	cm := real(cmc)

	p1 := p0
	p1.X = p0.X.Add(tm.Mul(h * cm))
	p1.T = p0.T.Sub(gradm.Mul(h / (cm * cm)))
	p1.Tau = p0.Tau + complex(h, 0)/cmc
	p1.Q = p0.Q.Add(p0.P.Mul(h * cm))

	c1c, _, err := med.Sample(p1.X, p1.T)
	if err != nil {
		return RayPt2D{}, err
	}
	p1.C = real(c1c)
	return p1, nil
}

func (st MidpointStepper) Step(p0 RayPt2D, bds *BdryState2D, med Medium2D, smallSteps *int32) (RayPt2D, bool, bool, error) {
	h := st.StepSize
	trial, err := st.advance2D(p0, h, med)
	if err != nil {
		return RayPt2D{}, false, false, err
	}

	d0Top, d0Bot := Distances2D(p0.X, &bds.Top, &bds.Bot)
	d1Top, d1Bot := Distances2D(trial.X, &bds.Top, &bds.Bot)

	fTop, topRefl := crossFrac(d0Top, d1Top)
	fBot, botRefl := crossFrac(d0Bot, d1Bot)
	f := fTop
	if fBot < f {
		f = fBot
	}
	if !topRefl && !botRefl {
		return trial, false, false, nil
	}

	h *= f * stepOverhang
	if f < smallStepFrac {
		*smallSteps++
	}
	p1, err := st.advance2D(p0, h, med)
	if err != nil {
		return RayPt2D{}, false, false, err
	}
	// re-test which boundary the shortened step actually crossed
	d1Top, d1Bot = Distances2D(p1.X, &bds.Top, &bds.Bot)
	_, topRefl = crossFrac(d0Top, d1Top)
	_, botRefl = crossFrac(d0Bot, d1Bot)
	return p1, topRefl, botRefl, nil
}

func (st MidpointStepper) advance3D(p0 RayPt3D, h Real, med Medium3D) (RayPt3D, error) {
	c0c, grad0, err := med.Sample(p0.X, p0.T)
	if err != nil {
		return RayPt3D{}, err
	}
	c0 := real(c0c)

	xm := p0.X.Add(p0.T.Mul(0.5 * h * c0))
	tm := p0.T.Sub(grad0.Mul(0.5 * h / (c0 * c0)))
	cmc, gradm, err := med.Sample(xm, tm)
	if err != nil {
		return RayPt3D{}, err
	}
	cm := real(cmc)

	p1 := p0
	p1.X = p0.X.Add(tm.Mul(h * cm))
	p1.T = p0.T.Sub(gradm.Mul(h / (cm * cm)))
	p1.Tau = p0.Tau + complex(h, 0)/cmc
	p1.Q = p0.Q.Add(p0.P.Mul(h * cm))

	c1c, _, err := med.Sample(p1.X, p1.T)
	if err != nil {
		return RayPt3D{}, err
	}
	p1.C = real(c1c)
	return p1, nil
}

// Step3 is MidpointStepper's Stepper3D implementation.
func (st MidpointStepper) Step3(p0 RayPt3D, bds *BdryState3D, med Medium3D, smallSteps *int32) (RayPt3D, bool, bool, error) {
	h := st.StepSize
	trial, err := st.advance3D(p0, h, med)
	if err != nil {
		return RayPt3D{}, false, false, err
	}

	d0Top, d0Bot := Distances3D(p0.X, &bds.Top, &bds.Bot)
	d1Top, d1Bot := Distances3D(trial.X, &bds.Top, &bds.Bot)

	fTop, topRefl := crossFrac(d0Top, d1Top)
	fBot, botRefl := crossFrac(d0Bot, d1Bot)
	f := fTop
	if fBot < f {
		f = fBot
	}
	if !topRefl && !botRefl {
		return trial, false, false, nil
	}

	h *= f * stepOverhang
	if f < smallStepFrac {
		*smallSteps++
	}
	p1, err := st.advance3D(p0, h, med)
	if err != nil {
		return RayPt3D{}, false, false, err
	}
	d1Top, d1Bot = Distances3D(p1.X, &bds.Top, &bds.Bot)
	_, topRefl = crossFrac(d0Top, d1Top)
	_, botRefl = crossFrac(d0Bot, d1Bot)
	return p1, topRefl, botRefl, nil
}

// StepHybrid is MidpointStepper's StepperHybrid implementation: the march
// is 2D, the crossing test happens in the ocean frame.
func (st MidpointStepper) StepHybrid(p0 RayPt2D, org *Origin, bds *BdryState3D, med Medium2D, smallSteps *int32) (RayPt2D, bool, bool, error) {
	h := st.StepSize
	trial, err := st.advance2D(p0, h, med)
	if err != nil {
		return RayPt2D{}, false, false, err
	}

	d0Top, d0Bot := Distances3D(org.RayToOceanX(p0.X), &bds.Top, &bds.Bot)
	d1Top, d1Bot := Distances3D(org.RayToOceanX(trial.X), &bds.Top, &bds.Bot)

	fTop, topRefl := crossFrac(d0Top, d1Top)
	fBot, botRefl := crossFrac(d0Bot, d1Bot)
	f := fTop
	if fBot < f {
		f = fBot
	}
	if !topRefl && !botRefl {
		return trial, false, false, nil
	}

	h *= f * stepOverhang
	if f < smallStepFrac {
		*smallSteps++
	}
	p1, err := st.advance2D(p0, h, med)
	if err != nil {
		return RayPt2D{}, false, false, err
	}
	d1Top, d1Bot = Distances3D(org.RayToOceanX(p1.X), &bds.Top, &bds.Bot)
	_, topRefl = crossFrac(d0Top, d1Top)
	_, botRefl = crossFrac(d0Bot, d1Bot)
	return p1, topRefl, botRefl, nil
}

var (
	_ Stepper2D = MidpointStepper{}
)

// stepper3DAdapter and stepperHybridAdapter let the one reference
// implementation satisfy the mode-specific contracts without method name
// collisions.
type stepper3DAdapter struct{ MidpointStepper }

func (a stepper3DAdapter) Step(p0 RayPt3D, bds *BdryState3D, med Medium3D, smallSteps *int32) (RayPt3D, bool, bool, error) {
	return a.Step3(p0, bds, med, smallSteps)
}

type stepperHybridAdapter struct{ MidpointStepper }

func (a stepperHybridAdapter) Step(p0 RayPt2D, org *Origin, bds *BdryState3D, med Medium2D, smallSteps *int32) (RayPt2D, bool, bool, error) {
	return a.StepHybrid(p0, org, bds, med, smallSteps)
}

// NewStepper3D wraps the reference integrator as a Stepper3D.
func NewStepper3D(stepSize Real) Stepper3D { return stepper3DAdapter{MidpointStepper{stepSize}} }

// NewStepperHybrid wraps the reference integrator as a StepperHybrid.
func NewStepperHybrid(stepSize Real) StepperHybrid {
	return stepperHybridAdapter{MidpointStepper{stepSize}}
}
