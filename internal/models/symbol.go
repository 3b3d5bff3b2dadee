package models

import (
	"strings"
	"time"
)

// FeedConfiguration is the /config capability set.
type FeedConfiguration struct {
	SupportsSearch         bool     `json:"supports_search"`
	SupportsGroupRequest   bool     `json:"supports_group_request"`
	SupportedResolutions   []string `json:"supported_resolutions"`
	SupportsMarks          bool     `json:"supports_marks"`
	SupportsTimescaleMarks bool     `json:"supports_timescale_marks"`
	SupportsTime           bool     `json:"supports_time"`
}

// SymbolSummary is one /search result row.
type SymbolSummary struct {
	Symbol      string `json:"symbol"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Exchange    string `json:"exchange"`
	Ticker      string `json:"ticker,omitempty"`
	Type        string `json:"type"`
}

// RawSymbolInfo is the /symbols body as sent by the server. Pointer fields tell
// "absent" apart from zero values.
type RawSymbolInfo struct {
	S                    string   `json:"s,omitempty"`
	Error                any      `json:"error,omitempty"`
	Name                 string   `json:"name"`
	Ticker               string   `json:"ticker,omitempty"`
	Description          string   `json:"description,omitempty"`
	Type                 string   `json:"type,omitempty"`
	Session              string   `json:"session,omitempty"`
	Timezone             string   `json:"timezone,omitempty"`
	Exchange             string   `json:"exchange,omitempty"`
	ListedExchange       string   `json:"listed_exchange,omitempty"`
	MinMov               float64  `json:"minmov,omitempty"`
	MinMov2              float64  `json:"minmov2,omitempty"`
	PriceScale           float64  `json:"pricescale,omitempty"`
	PointValue           float64  `json:"pointvalue,omitempty"`
	HasIntraday          bool     `json:"has_intraday,omitempty"`
	HasNoVolume          *bool    `json:"has_no_volume,omitempty"`
	HasWeeklyAndMonthly  bool     `json:"has_weekly_and_monthly,omitempty"`
	HasDaily             bool     `json:"has_daily,omitempty"`
	SupportedResolutions []string `json:"supported_resolutions,omitempty"`
	VolumePrecision      int      `json:"volume_precision,omitempty"`
	DataStatus           string   `json:"data_status,omitempty"`
}

// SymbolInfo is the normalized symbol record handed to the chart.
type SymbolInfo struct {
	Name                 string   `json:"name"`
	Ticker               string   `json:"ticker"`
	Description          string   `json:"description"`
	Type                 string   `json:"type"`
	Session              string   `json:"session"`
	Timezone             string   `json:"timezone"`
	Exchange             string   `json:"exchange"`
	ListedExchange       string   `json:"listed_exchange"`
	MinMov               float64  `json:"minmov"`
	MinMov2              float64  `json:"minmov2"`
	PriceScale           float64  `json:"pricescale"`
	PointValue           float64  `json:"pointvalue"`
	HasIntraday          bool     `json:"has_intraday"`
	HasNoVolume          bool     `json:"has_no_volume"`
	HasWeeklyAndMonthly  bool     `json:"has_weekly_and_monthly"`
	HasDaily             bool     `json:"has_daily"`
	SupportedResolutions []string `json:"supported_resolutions"`
	VolumePrecision      int      `json:"volume_precision"`
	DataStatus           string   `json:"data_status"`
}

// SymbolRecord is a catalog row kept by the UDF server store.
type SymbolRecord struct {
	Exchange   string    `yaml:"exchange" json:"exchange"`
	Code       string    `yaml:"code" json:"code"`
	Name       string    `yaml:"name" json:"name"`
	Type       string    `yaml:"type" json:"type"`
	Session    string    `yaml:"session" json:"session"`
	Timezone   string    `yaml:"timezone" json:"timezone"`
	PriceScale int       `yaml:"pricescale" json:"pricescale"`
	UpdatedAt  time.Time `yaml:"-" json:"-"`
}

// FullName is the EXCHANGE:CODE form used as the chart symbol.
func (r SymbolRecord) FullName() string { return r.Exchange + ":" + r.Code }

// SplitSymbol splits EXCHANGE:CODE. ok is false when there is no exchange part.
func SplitSymbol(s string) (exchange, code string, ok bool) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", s, false
	}
	return s[:i], s[i+1:], true
}
