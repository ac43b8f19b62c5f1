package indicator

// ATR calculates the Average True Range with Wilder-style smoothing.
// First value is the SMA of the first period true ranges, then
// ATR = (prev*(period-1) + TR) / period.
type ATR struct {
	period    int
	count     int
	prevClose float64
	sum       float64
	current   float64
}

// NewATR creates a new ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Update feeds the next candle's high, low and close.
func (a *ATR) Update(high, low, close float64) {
	tr := high - low
	if a.count > 0 {
		// True range extends the bar range to the previous close
		if d := abs(high - a.prevClose); d > tr {
			tr = d
		}
		if d := abs(low - a.prevClose); d > tr {
			tr = d
		}
	}
	a.prevClose = close
	a.count++

	if a.count <= a.period {
		a.sum += tr
		if a.count == a.period {
			a.current = a.sum / float64(a.period)
		}
		return
	}

	a.current = (a.current*float64(a.period-1) + tr) / float64(a.period)
}

// Value returns the current ATR. Returns 0 before Ready.
func (a *ATR) Value() float64 { return a.current }

// Ready reports whether the warm-up window has been filled.
func (a *ATR) Ready() bool { return a.count >= a.period }

// Reset clears the ATR state for reuse.
func (a *ATR) Reset() {
	a.count = 0
	a.prevClose = 0
	a.sum = 0
	a.current = 0
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
