package indicator

// MACD calculates Moving Average Convergence/Divergence: the difference of a
// fast and a slow EMA, plus a signal EMA of that difference. The signal line
// is only fed once the slow EMA is seeded, so the full warm-up window is
// slow period + signal period.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA

	macd float64
	hist float64
}

// NewMACD creates a MACD with the given fast/slow/signal periods
// (fast must be < slow; enforced at config load time).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

// Update feeds the next close price.
func (m *MACD) Update(price float64) {
	m.fast.Update(price)
	m.slow.Update(price)
	if !m.slow.Ready() {
		return
	}

	m.macd = m.fast.Value() - m.slow.Value()
	m.signal.Update(m.macd)
	if m.signal.Ready() {
		m.hist = m.macd - m.signal.Value()
	}
}

// Value returns the current MACD line. Returns 0 before Ready.
func (m *MACD) Value() float64 { return m.macd }

// Signal returns the current signal line.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Hist returns the current histogram (MACD − signal).
func (m *MACD) Hist() float64 { return m.hist }

// Ready reports whether both the slow EMA and the signal EMA are seeded.
func (m *MACD) Ready() bool { return m.slow.Ready() && m.signal.Ready() }

// Reset clears all three EMAs for reuse.
func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.macd = 0
	m.hist = 0
}
