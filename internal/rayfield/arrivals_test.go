package rayfield

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrInfoRegimeSelection(t *testing.T) {
	serial := NewArrInfo(4, 8, 1, 100)
	assert.True(t, serial.AllowMerging)

	concurrent := NewArrInfo(4, 8, 4, 100)
	assert.False(t, concurrent.AllowMerging)
}

func TestMergingJoinsReflectionPair(t *testing.T) {
	a := NewArrInfo(1, 8, 1, 10) // omega 10 so 10*0.002 < 0.05

	a.Add(0, Deposit{Amp: 0.5, Phase: 0.10, Delay: complex(1.000, 0.010)})
	require.EqualValues(t, 1, a.Count(0))

	// close in scaled delay and phase: merges into the stored record
	a.Add(0, Deposit{Amp: 0.3, Phase: 0.11, Delay: complex(1.002, 0.010)})
	require.EqualValues(t, 1, a.Count(0))

	rec := a.Records(0)[0]
	assert.InDelta(t, 0.8, float64(rec.Amp), 1e-6)
	// amplitude-weighted delay: 0.625*1.000 + 0.375*1.002
	assert.InDelta(t, 1.00075, float64(real(rec.Delay)), 1e-6)
	assert.InDelta(t, 0.010, float64(imag(rec.Delay)), 1e-6)
}

func TestMergingRejectsDistinctPaths(t *testing.T) {
	a := NewArrInfo(1, 8, 1, 100)

	a.Add(0, Deposit{Amp: 0.5, Phase: 0, Delay: 1.0})
	// same delay but a surface-flipped phase stays separate
	a.Add(0, Deposit{Amp: 0.5, Phase: 3.14, Delay: 1.0})
	assert.EqualValues(t, 2, a.Count(0))

	// same phase but a distinct delay stays separate
	a.Add(0, Deposit{Amp: 0.5, Phase: 0, Delay: 1.5})
	assert.EqualValues(t, 3, a.Count(0))
}

func TestMergingReplacesWeakestAtCapacity(t *testing.T) {
	a := NewArrInfo(1, 2, 1, 100)

	a.Add(0, Deposit{Amp: 0.2, Phase: 0, Delay: 1.0})
	a.Add(0, Deposit{Amp: 0.4, Phase: 0, Delay: 5.0})
	require.EqualValues(t, 2, a.Count(0))

	// stronger than the weakest stored: evicts it
	a.Add(0, Deposit{Amp: 0.3, Phase: 0, Delay: 9.0})
	assert.EqualValues(t, 2, a.Count(0))
	amps := []float32{a.Records(0)[0].Amp, a.Records(0)[1].Amp}
	assert.Contains(t, amps, float32(0.3))
	assert.Contains(t, amps, float32(0.4))

	// weaker than everything stored: dropped
	a.Add(0, Deposit{Amp: 0.15, Phase: 0, Delay: 13.0})
	amps = []float32{a.Records(0)[0].Amp, a.Records(0)[1].Amp}
	assert.NotContains(t, amps, float32(0.15))
}

func TestMergingOnlySeesMostRecentRecord(t *testing.T) {
	a := NewArrInfo(1, 8, 1, 10)

	a.Add(0, Deposit{Amp: 0.5, Phase: 0, Delay: 1.0})
	a.Add(0, Deposit{Amp: 0.5, Phase: 0, Delay: 2.0})
	// matches the first record, not the most recent: stored separately
	a.Add(0, Deposit{Amp: 0.5, Phase: 0, Delay: 1.0})
	assert.EqualValues(t, 3, a.Count(0))
}

func TestAtomicRegimeFirstNWins(t *testing.T) {
	const maxNArr = 4
	a := NewArrInfo(1, maxNArr, 8, 100)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				a.Add(0, Deposit{Amp: 1, Delay: complex(float64(w), 0)})
			}
		}(w)
	}
	wg.Wait()

	// raw count overflows; the read side clamps it
	assert.Greater(t, a.NArr[0], int32(maxNArr))
	assert.EqualValues(t, maxNArr, a.Count(0))
	for _, rec := range a.Records(0) {
		assert.EqualValues(t, 1, rec.Amp)
	}
}

func TestArrInfoMinimumCapacity(t *testing.T) {
	a := NewArrInfo(2, 0, 1, 100)
	assert.EqualValues(t, 1, a.MaxNArr)
	a.Add(1, Deposit{Amp: 0.5, Delay: 1})
	assert.EqualValues(t, 1, a.Count(1))
	assert.EqualValues(t, 0, a.Count(0))
}
