package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Scaler materialization predicate (spec §4.F.2, §8 "scaler invariants").

func TestNeedsScaler(t *testing.T) {
	cases := []struct {
		name                            string
		decWidth, decHeight, encW, encH int
		want                            bool
	}{
		{"downscale both axes", 320, 240, 160, 120, true},
		{"upscale both axes is not a scale-down", 320, 240, 640, 480, false},
		{"identical resolution", 320, 240, 320, 240, false},
		{"wider only, same height", 320, 240, 160, 240, false},
		{"taller only, same width", 320, 240, 320, 120, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, needsScaler(c.decWidth, c.decHeight, c.encW, c.encH))
		})
	}
}

// CRF vs CBR branch selection (spec §4.F.1 step 5, §8 "CRF vs CBR branch").

func TestCrfMode(t *testing.T) {
	assert.True(t, crfMode(23))
	assert.True(t, crfMode(0))
	assert.False(t, crfMode(-1))
}

// Duration recomputation formula (spec §4.F.3, §9 open question 3:
// preserved verbatim, division-by-zero guarded).

func TestRecomputePacketDuration(t *testing.T) {
	d, ok := recomputePacketDuration(90000, 1, 30, 1)
	assert.True(t, ok)
	assert.Equal(t, int64(3000), d) // 90000/1/30*1

	_, ok = recomputePacketDuration(90000, 0, 30, 1)
	assert.False(t, ok, "zero output time-base numerator must be guarded")

	_, ok = recomputePacketDuration(90000, 1, 0, 1)
	assert.False(t, ok, "zero average-frame-rate numerator must be guarded")
}

// Progress monotonicity (spec §4.F.3, §8 "progress monotonicity").

func TestNextProgressPct(t *testing.T) {
	pct, advanced := nextProgressPct(1, 0, 200, 0)
	assert.Equal(t, 0, pct)
	assert.False(t, advanced, "0% must not be emitted as an advance past counter 0")

	pct, advanced = nextProgressPct(2, 0, 200, 0)
	assert.Equal(t, 1, pct)
	assert.True(t, advanced)

	_, advanced = nextProgressPct(2, 0, 200, 1)
	assert.False(t, advanced, "same percent as counter must not re-emit")

	pct, advanced = nextProgressPct(200, 0, 200, 99)
	assert.Equal(t, 100, pct)
	assert.True(t, advanced)
}

func TestNextProgressPctStrictlyIncreasing(t *testing.T) {
	const total = int64(200)
	counter := 0
	var seen []int
	for apkts := int64(1); apkts <= total; apkts++ {
		pct, advanced := nextProgressPct(apkts, 0, total, counter)
		if advanced {
			seen = append(seen, pct)
			counter = pct
		}
	}
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1], "progress_pct sequence must be strictly increasing")
	}
	assert.NotEmpty(t, seen)
	assert.Equal(t, 100, seen[len(seen)-1])
}

// time_left_ms estimate (spec §8: "time_left_ms >= 0").

func TestEstimateTimeLeftMs(t *testing.T) {
	assert.Equal(t, int64(0), estimateTimeLeftMs(1000, 0), "pct=0 has no estimate yet")
	assert.Equal(t, int64(3000), estimateTimeLeftMs(1000, 25)) // 1000*(75)/25
	assert.GreaterOrEqual(t, estimateTimeLeftMs(500, 50), int64(0))
}
