package rayfield

import (
	"math"
	"sync/atomic"
)

// Arrival is one stored contribution to a receiver cell. float32 fields
// halve the arena footprint; the tracer works in float64 up to this point.
type Arrival struct {
	Amp   float32
	Phase float32
	Delay complex64

	SrcDeclAngle float32
	SrcAzimAngle float32

	RcvrDeclAngle float32
	RcvrAzimAngle float32

	NTopBnc int32
	NBotBnc int32
}

// Deposit is one candidate contribution, still in working precision.
type Deposit struct {
	Amp   Real
	Phase Real
	Delay complex128

	SrcDeclAngle, SrcAzimAngle   Real
	RcvrDeclAngle, RcvrAzimAngle Real

	NTopBnc, NBotBnc int32
}

func (d *Deposit) record() Arrival {
	return Arrival{
		Amp:           float32(d.Amp),
		Phase:         float32(d.Phase),
		Delay:         complex64(d.Delay),
		SrcDeclAngle:  float32(d.SrcDeclAngle),
		SrcAzimAngle:  float32(d.SrcAzimAngle),
		RcvrDeclAngle: float32(d.RcvrDeclAngle),
		RcvrAzimAngle: float32(d.RcvrAzimAngle),
		NTopBnc:       d.NTopBnc,
		NBotBnc:       d.NBotBnc,
	}
}

// ArrInfo is the shared per-receiver-cell arrival arena. Each cell owns a
// fixed-capacity slot range in Arr plus a count in NArr; both live for the
// whole run and start zero-filled.
//
// Two deposit regimes exist, selected once per run from the worker count:
//
//   - exact/serial (one worker): pair merging and weakest-replacement, which
//     need a read-modify-write against the most recent record and are only
//     correct when a single producer writes each cell in arrival order;
//   - concurrent/lossy (many workers): lock-free fetch-and-increment with
//     first-MaxNArr-wins semantics. The raw count may exceed capacity and is
//     clamped on the read side.
//
// Merging only ever tests the most recently stored record, so the second
// step of a reflection pair written to a non-adjacent slot is not found.
// This matches the source model and is kept as a documented limitation.
type ArrInfo struct {
	Arr     []Arrival
	NArr    []int32
	MaxNArr int32

	AllowMerging bool
	omega        Real

	deposit func(a *ArrInfo, base int, d Deposit)
}

// NewArrInfo allocates the arena for nCells cells of maxNArr records each.
// workers fixes the deposit regime for the lifetime of the arena.
func NewArrInfo(nCells int, maxNArr int32, workers int, omega Real) *ArrInfo {
	if maxNArr < 1 {
		maxNArr = 1
	}
	a := &ArrInfo{
		Arr:          make([]Arrival, nCells*int(maxNArr)),
		NArr:         make([]int32, nCells),
		MaxNArr:      maxNArr,
		AllowMerging: workers == 1,
		omega:        omega,
	}
	if a.AllowMerging {
		a.deposit = (*ArrInfo).addMerging
	} else {
		a.deposit = (*ArrInfo).addAtomic
	}
	return a
}

// Add deposits one contribution into the cell at base.
func (a *ArrInfo) Add(base int, d Deposit) { a.deposit(a, base, d) }

// isSecondStepOfPair reports whether d continues the most recently stored
// arrival of the same ray: the frequency-scaled delay gap and the phase gap
// are both below tolerance. The phase test keeps surface and direct paths
// from being joined.
func (a *ArrInfo) isSecondStepOfPair(arr []Arrival, nt int32, d *Deposit) bool {
	if nt < 1 {
		return false
	}
	last := &arr[nt-1]
	dDelay := d.Delay - complex128(last.Delay)
	return a.omega*cAbs(dDelay) < mergeTol &&
		math.Abs(float64(last.Phase)-d.Phase) < mergeTol
}

func cAbs(c complex128) Real { return math.Hypot(real(c), imag(c)) }

// addMerging is the exact/serial regime.
func (a *ArrInfo) addMerging(base int, d Deposit) {
	arr := a.Arr[base*int(a.MaxNArr) : (base+1)*int(a.MaxNArr)]
	nt := a.NArr[base]

	if !a.isSecondStepOfPair(arr, nt, &d) {
		var iArr int32
		if nt >= a.MaxNArr {
			// full cell: replace the weakest stored arrival, or drop the
			// candidate if everything stored is stronger
			iArr = -1
			weakest := float32(d.Amp)
			for i := int32(0); i < a.MaxNArr; i++ {
				if arr[i].Amp < weakest {
					weakest = arr[i].Amp
					iArr = i
				}
			}
			if iArr < 0 {
				return
			}
		} else {
			iArr = nt
			a.NArr[base] = nt + 1
		}
		arr[iArr] = d.record()
		return
	}

	// second step of a pair: merge, weighted by amplitude
	last := &arr[nt-1]
	ampTot := last.Amp + float32(d.Amp)
	w1 := last.Amp / ampTot
	w2 := float32(d.Amp) / ampTot

	last.Delay = complex64(complex(w1, 0))*last.Delay + complex64(complex(w2, 0))*complex64(d.Delay)
	last.Amp = ampTot
	last.SrcDeclAngle = w1*last.SrcDeclAngle + w2*float32(d.SrcDeclAngle)
	last.SrcAzimAngle = w1*last.SrcAzimAngle + w2*float32(d.SrcAzimAngle)
	last.RcvrDeclAngle = w1*last.RcvrDeclAngle + w2*float32(d.RcvrDeclAngle)
	last.RcvrAzimAngle = w1*last.RcvrAzimAngle + w2*float32(d.RcvrAzimAngle)
}

// addAtomic is the concurrent/lossy regime: claim a slot index atomically,
// write if within capacity, drop otherwise. No merging, no replacement.
func (a *ArrInfo) addAtomic(base int, d Deposit) {
	nt := atomic.AddInt32(&a.NArr[base], 1) - 1
	if nt >= a.MaxNArr {
		return
	}
	a.Arr[base*int(a.MaxNArr)+int(nt)] = d.record()
}

// Count returns the stored-record count of a cell, clamped to capacity; the
// concurrent regime over-counts dropped deposits.
func (a *ArrInfo) Count(base int) int32 {
	n := a.NArr[base]
	if n > a.MaxNArr {
		n = a.MaxNArr
	}
	return n
}

// Records returns the stored arrivals of a cell.
func (a *ArrInfo) Records(base int) []Arrival {
	return a.Arr[base*int(a.MaxNArr) : base*int(a.MaxNArr)+int(a.Count(base))]
}
