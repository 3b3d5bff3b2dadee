package service

import "udf_feed/internal/models"

const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpHistory     = "history"

	FrameBar     = "bar"
	FrameHistory = "history"
	FrameError   = "error"
)

// ClientFrame is a command sent by a websocket client.
type ClientFrame struct {
	Op         string `json:"op"`
	ID         string `json:"id,omitempty"`
	Symbol     string `json:"symbol"`
	Resolution string `json:"resolution"`
	From       int64  `json:"from,omitempty"`
	To         int64  `json:"to,omitempty"`
	Countback  int    `json:"countback,omitempty"`
	First      bool   `json:"first,omitempty"`
}

func (f ClientFrame) query() models.HistoryQuery {
	return models.HistoryQuery{
		Symbol:           f.Symbol,
		Resolution:       f.Resolution,
		From:             f.From,
		To:               f.To,
		Countback:        f.Countback,
		FirstDataRequest: f.First,
	}
}

// ServerFrame is anything pushed to a client.
type ServerFrame struct {
	Type       string              `json:"type"`
	ID         string              `json:"id,omitempty"`
	Symbol     string              `json:"symbol,omitempty"`
	Resolution string              `json:"resolution,omitempty"`
	Bar        *models.Bar         `json:"bar,omitempty"`
	Bars       []models.Bar        `json:"bars,omitempty"`
	Meta       *models.HistoryMeta `json:"meta,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func errorFrame(id, kind string) ServerFrame {
	return ServerFrame{Type: FrameError, ID: id, Error: kind}
}
