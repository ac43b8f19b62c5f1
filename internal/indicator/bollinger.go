package indicator

import "math"

// Bollinger calculates Bollinger Bands: a rolling simple moving average with
// upper/lower bands at ±stdMult population standard deviations.
// Uses a preallocated circular buffer for a zero-allocation hot path.
type Bollinger struct {
	period  int
	stdMult float64

	buf    []float64 // preallocated circular buffer
	idx    int       // current write position
	count  int       // total values received
	sum    float64
	sumSq  float64

	mid   float64
	upper float64
	lower float64
}

// NewBollinger creates Bollinger Bands over the given period.
func NewBollinger(period int, stdMult float64) *Bollinger {
	return &Bollinger{
		period:  period,
		stdMult: stdMult,
		buf:     make([]float64, period),
	}
}

// Update feeds the next close price.
func (b *Bollinger) Update(price float64) {
	if b.count >= b.period {
		// Subtract the oldest value being overwritten
		old := b.buf[b.idx]
		b.sum -= old
		b.sumSq -= old * old
	}

	b.buf[b.idx] = price
	b.sum += price
	b.sumSq += price * price
	b.idx = (b.idx + 1) % b.period
	b.count++

	if b.count < b.period {
		return
	}

	n := float64(b.period)
	b.mid = b.sum / n
	variance := b.sumSq/n - b.mid*b.mid
	if variance < 0 {
		variance = 0 // float drift near a constant series
	}
	dev := b.stdMult * math.Sqrt(variance)
	b.upper = b.mid + dev
	b.lower = b.mid - dev
}

// Upper returns the current upper band. Returns 0 before Ready.
func (b *Bollinger) Upper() float64 { return b.upper }

// Mid returns the current middle band (SMA).
func (b *Bollinger) Mid() float64 { return b.mid }

// Lower returns the current lower band.
func (b *Bollinger) Lower() float64 { return b.lower }

// Ready reports whether the rolling window has been filled.
func (b *Bollinger) Ready() bool { return b.count >= b.period }

// Reset clears the band state for reuse.
func (b *Bollinger) Reset() {
	b.idx = 0
	b.count = 0
	b.sum = 0
	b.sumSq = 0
	b.mid = 0
	b.upper = 0
	b.lower = 0
	for i := range b.buf {
		b.buf[i] = 0
	}
}
