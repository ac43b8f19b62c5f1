package feed

import (
	"testing"
	"time"
)

func TestParseCandle(t *testing.T) {
	c, err := parseCandle("BTCUSDT", "5m", 1704067200000, "42000.1", "42100.5", "41900", "42050.25", "13.37")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !c.OpenTime.Equal(want) {
		t.Errorf("open time = %s, want %s", c.OpenTime, want)
	}
	if c.Open != 42000.1 || c.High != 42100.5 || c.Low != 41900 || c.Close != 42050.25 || c.Volume != 13.37 {
		t.Errorf("parsed candle = %+v", c)
	}
	if c.Key() != "BTCUSDT:5m" {
		t.Errorf("key = %s", c.Key())
	}
}

func TestParseCandleRejectsGarbage(t *testing.T) {
	if _, err := parseCandle("BTCUSDT", "5m", 0, "not-a-number", "1", "1", "1", "1"); err == nil {
		t.Error("accepted a non-numeric field")
	}
}
