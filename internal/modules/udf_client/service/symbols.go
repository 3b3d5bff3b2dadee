package service

import (
	"context"
	"net/url"

	"udf_feed/internal/models"
)

// ResolveSymbol fetches /symbols and applies the defaulting rules. A missing
// body, an error marker or a transport failure all yield models.ErrUnknownSymbol.
func (c *Client) ResolveSymbol(ctx context.Context, name string) (models.SymbolInfo, error) {
	params := url.Values{}
	params.Set("symbol", name)

	var raw *models.RawSymbolInfo
	if err := c.send(ctx, "/symbols", params, &raw); err != nil {
		return models.SymbolInfo{}, models.ErrUnknownSymbol
	}
	return NormalizeSymbolInfo(name, raw)
}

// NormalizeSymbolInfo fills the defaults the chart expects.
func NormalizeSymbolInfo(requested string, raw *models.RawSymbolInfo) (models.SymbolInfo, error) {
	if raw == nil || truthy(raw.Error) || raw.S == models.StatusError {
		return models.SymbolInfo{}, models.ErrUnknownSymbol
	}

	info := models.SymbolInfo{
		Name:                 raw.Name,
		Ticker:               or(raw.Ticker, requested),
		Description:          raw.Description,
		Type:                 raw.Type,
		Session:              or(raw.Session, "24x7"),
		Timezone:             or(raw.Timezone, "UTC"),
		Exchange:             raw.Exchange,
		ListedExchange:       or(raw.ListedExchange, raw.Exchange),
		MinMov:               orNum(raw.MinMov, 1),
		MinMov2:              raw.MinMov2,
		PriceScale:           orNum(raw.PriceScale, 1),
		PointValue:           orNum(raw.PointValue, 1),
		HasIntraday:          raw.HasIntraday,
		HasNoVolume:          raw.HasNoVolume == nil || *raw.HasNoVolume,
		HasWeeklyAndMonthly:  raw.HasWeeklyAndMonthly,
		HasDaily:             raw.HasDaily,
		SupportedResolutions: raw.SupportedResolutions,
		VolumePrecision:      raw.VolumePrecision,
		DataStatus:           or(raw.DataStatus, "streaming"),
	}
	if info.SupportedResolutions == nil {
		info.SupportedResolutions = []string{}
	}
	return info, nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orNum(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}
