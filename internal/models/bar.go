package models

// Bar is one OHLCV sample. Time is milliseconds since epoch.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Unix returns the bar open time in seconds.
func (b Bar) Unix() int64 { return b.Time / 1000 }

// HistoryMeta accompanies every successful history delivery. NextTime is the
// server hint for the closest earlier bar in ms, zero when absent.
type HistoryMeta struct {
	NoData   bool  `json:"noData"`
	NextTime int64 `json:"nextTime,omitempty"`
}
