package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Strategy holds all tunable parameters of the BB+MACD strategy.
// Every numeric field is range-checked at load time; loading never silently
// clamps an out-of-range value.
type Strategy struct {
	// Bollinger Bands
	BBPeriod int     `yaml:"bb_period"`
	BBStd    float64 `yaml:"bb_std"`

	// MACD
	MACDFast         int `yaml:"macd_fast"`
	MACDSlow         int `yaml:"macd_slow"`
	MACDSignalPeriod int `yaml:"macd_signal_period"`

	// RSI
	RSIPeriod        int     `yaml:"rsi_period"`
	RSIFilterEnabled bool    `yaml:"rsi_filter_enabled"`
	RSIBuyMax        float64 `yaml:"rsi_buy_max"`
	RSISellMin       float64 `yaml:"rsi_sell_min"`

	// EMA trend filter (long-only above)
	TrendFilterEnabled bool `yaml:"trend_filter_enabled"`
	TrendEMAPeriod     int  `yaml:"trend_ema_period"`

	// Execution
	TouchTolerancePct float64 `yaml:"touch_tolerance_pct"`
	FeePct            float64 `yaml:"fee_pct"`
	SlippagePct       float64 `yaml:"slippage_pct"`

	// Risk
	ATRPeriod          int     `yaml:"atr_period"`
	StopATRMultiplier  float64 `yaml:"stop_atr_multiplier"`
	TrailATRMultiplier float64 `yaml:"trail_atr_multiplier"`
	TimeExitBars       int     `yaml:"time_exit_bars"`
	MidbandExitEnabled bool    `yaml:"midband_exit_enabled"`

	// Backtest
	InitialCash   float64 `yaml:"initial_cash"`
	SizePct       float64 `yaml:"size_pct"`
	Annualization float64 `yaml:"annualization"` // periods per year for Sharpe scaling
}

// DefaultStrategy returns the parameter set the original research profile uses.
func DefaultStrategy() Strategy {
	return Strategy{
		BBPeriod:           20,
		BBStd:              2.0,
		MACDFast:           12,
		MACDSlow:           26,
		MACDSignalPeriod:   9,
		RSIPeriod:          14,
		RSIFilterEnabled:   false,
		RSIBuyMax:          40.0,
		RSISellMin:         60.0,
		TrendFilterEnabled: false,
		TrendEMAPeriod:     200,
		TouchTolerancePct:  0.0,
		FeePct:             0.0004,
		SlippagePct:        0.0005,
		ATRPeriod:          14,
		StopATRMultiplier:  1.5,
		TrailATRMultiplier: 2.0,
		TimeExitBars:       60,
		MidbandExitEnabled: false,
		InitialCash:        10000.0,
		SizePct:            0.99,
		Annualization:      105120, // 5m bars per year
	}
}

// LoadStrategy reads a strategy YAML file on top of the defaults and
// validates the result. A missing path ("") returns validated defaults.
func LoadStrategy(path string) (Strategy, error) {
	cfg := DefaultStrategy()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Strategy{}, fmt.Errorf("strategy config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Strategy{}, fmt.Errorf("strategy config: parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Strategy{}, err
	}
	return cfg, nil
}

// Validate checks every parameter constraint. The first violation is terminal.
func (s *Strategy) Validate() error {
	switch {
	case s.BBPeriod < 2:
		return fmt.Errorf("strategy config: bb_period must be >= 2, got %d", s.BBPeriod)
	case s.BBStd <= 0:
		return fmt.Errorf("strategy config: bb_std must be > 0, got %g", s.BBStd)
	case s.MACDFast < 1:
		return fmt.Errorf("strategy config: macd_fast must be >= 1, got %d", s.MACDFast)
	case s.MACDFast >= s.MACDSlow:
		return fmt.Errorf("strategy config: macd_fast (%d) must be < macd_slow (%d)", s.MACDFast, s.MACDSlow)
	case s.MACDSignalPeriod < 1:
		return fmt.Errorf("strategy config: macd_signal_period must be >= 1, got %d", s.MACDSignalPeriod)
	case s.RSIPeriod < 1:
		return fmt.Errorf("strategy config: rsi_period must be >= 1, got %d", s.RSIPeriod)
	case s.RSIFilterEnabled && (s.RSIBuyMax < 0 || s.RSIBuyMax > 100):
		return fmt.Errorf("strategy config: rsi_buy_max must be within [0,100], got %g", s.RSIBuyMax)
	case s.RSIFilterEnabled && (s.RSISellMin < 0 || s.RSISellMin > 100):
		return fmt.Errorf("strategy config: rsi_sell_min must be within [0,100], got %g", s.RSISellMin)
	case s.RSIFilterEnabled && s.RSIBuyMax >= s.RSISellMin:
		return fmt.Errorf("strategy config: rsi_buy_max (%g) must be < rsi_sell_min (%g)", s.RSIBuyMax, s.RSISellMin)
	case s.TrendFilterEnabled && s.TrendEMAPeriod < 1:
		return fmt.Errorf("strategy config: trend_ema_period must be >= 1, got %d", s.TrendEMAPeriod)
	case s.TouchTolerancePct < 0 || s.TouchTolerancePct >= 1:
		return fmt.Errorf("strategy config: touch_tolerance_pct must be within [0,1), got %g", s.TouchTolerancePct)
	case s.FeePct < 0 || s.FeePct >= 1:
		return fmt.Errorf("strategy config: fee_pct must be within [0,1), got %g", s.FeePct)
	case s.SlippagePct < 0 || s.SlippagePct >= 1:
		return fmt.Errorf("strategy config: slippage_pct must be within [0,1), got %g", s.SlippagePct)
	case s.ATRPeriod < 1:
		return fmt.Errorf("strategy config: atr_period must be >= 1, got %d", s.ATRPeriod)
	case s.StopATRMultiplier <= 0:
		return fmt.Errorf("strategy config: stop_atr_multiplier must be > 0, got %g", s.StopATRMultiplier)
	case s.TrailATRMultiplier <= 0:
		return fmt.Errorf("strategy config: trail_atr_multiplier must be > 0, got %g", s.TrailATRMultiplier)
	case s.TimeExitBars < 1:
		return fmt.Errorf("strategy config: time_exit_bars must be >= 1, got %d", s.TimeExitBars)
	case s.InitialCash <= 0:
		return fmt.Errorf("strategy config: initial_cash must be > 0, got %g", s.InitialCash)
	case s.SizePct <= 0 || s.SizePct > 1:
		return fmt.Errorf("strategy config: size_pct must be within (0,1], got %g", s.SizePct)
	case s.Annualization <= 0:
		return fmt.Errorf("strategy config: annualization must be > 0, got %g", s.Annualization)
	}
	return nil
}

// WarmupBars is the number of closed candles needed before every configured
// indicator is defined: the largest single warm-up window across Bollinger,
// MACD (slow EMA + signal EMA), RSI, ATR and the optional trend EMA.
func (s *Strategy) WarmupBars() int {
	max := s.BBPeriod
	if n := s.MACDSlow + s.MACDSignalPeriod; n > max {
		max = n
	}
	if n := s.RSIPeriod + 1; n > max {
		max = n
	}
	if n := s.ATRPeriod; n > max {
		max = n
	}
	if s.TrendFilterEnabled && s.TrendEMAPeriod > max {
		max = s.TrendEMAPeriod
	}
	return max
}
