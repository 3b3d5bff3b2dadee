package models

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
)

// HistoryQuery identifies one /history request. From and To are seconds.
type HistoryQuery struct {
	Symbol           string
	Resolution       string
	From             int64
	To               int64
	Countback        int
	FirstDataRequest bool
}

// Key is the canonical identity of the query. Two queries with equal keys are the
// same logical fetch; the firstDataRequest flag participates because it changes the
// server side continuation hints.
func (q HistoryQuery) Key() string {
	var sb strings.Builder
	sb.WriteString("/history?symbol=")
	sb.WriteString(url.QueryEscape(q.Symbol))
	sb.WriteString("&resolution=")
	sb.WriteString(url.QueryEscape(q.Resolution))
	sb.WriteString("&from=")
	sb.WriteString(strconv.FormatInt(q.From, 10))
	sb.WriteString("&to=")
	sb.WriteString(strconv.FormatInt(q.To, 10))
	if q.Countback > 0 {
		sb.WriteString("&countback=")
		sb.WriteString(strconv.Itoa(q.Countback))
	}
	if q.FirstDataRequest {
		sb.WriteString("&firstDataRequest=true")
	}
	return sb.String()
}

// Params renders the query as /history request parameters.
func (q HistoryQuery) Params() url.Values {
	v := url.Values{}
	v.Set("symbol", q.Symbol)
	v.Set("resolution", q.Resolution)
	v.Set("from", strconv.FormatInt(q.From, 10))
	v.Set("to", strconv.FormatInt(q.To, 10))
	if q.Countback > 0 {
		v.Set("countback", strconv.Itoa(q.Countback))
	}
	v.Set("firstDataRequest", strconv.FormatBool(q.FirstDataRequest))
	return v
}

// HistoryResponse is the /history wire format: parallel arrays indexed by bar
// position, times in seconds.
type HistoryResponse struct {
	S      string    `json:"s"`
	T      []int64   `json:"t,omitempty"`
	O      []float64 `json:"o,omitempty"`
	H      []float64 `json:"h,omitempty"`
	L      []float64 `json:"l,omitempty"`
	C      []float64 `json:"c,omitempty"`
	V      []float64 `json:"v,omitempty"`
	NB     *int64    `json:"nb,omitempty"`
	Err    string    `json:"err,omitempty"`
	ErrMsg string    `json:"errmsg,omitempty"`
}

// Bars converts the parallel arrays to bars. The arrays are expected to be index
// aligned; a missing volume array yields zero volume.
func (r HistoryResponse) Bars() []Bar {
	out := make([]Bar, 0, len(r.T))
	for i, ts := range r.T {
		out = append(out, Bar{
			Time:   ts * 1000,
			Open:   at(r.O, i),
			High:   at(r.H, i),
			Low:    at(r.L, i),
			Close:  at(r.C, i),
			Volume: at(r.V, i),
		})
	}
	return out
}

// Meta derives the delivery meta for a set of parsed bars.
func (r HistoryResponse) Meta(bars []Bar) HistoryMeta {
	m := HistoryMeta{NoData: len(bars) == 0}
	if r.NB != nil {
		m.NextTime = *r.NB * 1000
	}
	return m
}

// ErrorText is the server supplied error string, if any.
func (r HistoryResponse) ErrorText() string {
	if r.Err != "" {
		return r.Err
	}
	return r.ErrMsg
}

// NewHistoryResponse builds an ok response from bars.
func NewHistoryResponse(bars []Bar) HistoryResponse {
	r := HistoryResponse{
		S: StatusOK,
		T: make([]int64, 0, len(bars)),
		O: make([]float64, 0, len(bars)),
		H: make([]float64, 0, len(bars)),
		L: make([]float64, 0, len(bars)),
		C: make([]float64, 0, len(bars)),
		V: make([]float64, 0, len(bars)),
	}
	for _, b := range bars {
		r.T = append(r.T, b.Unix())
		r.O = append(r.O, b.Open)
		r.H = append(r.H, b.High)
		r.L = append(r.L, b.Low)
		r.C = append(r.C, b.Close)
		r.V = append(r.V, b.Volume)
	}
	return r
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}
