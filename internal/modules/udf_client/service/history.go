package service

import (
	"context"

	"udf_feed/internal/models"
)

// History performs one /history request and parses the parallel arrays into
// bars. Status "no_data" is a successful empty answer; any other non-ok status
// is an error carrying the server text, or models.ErrUnknown without one.
func (c *Client) History(ctx context.Context, q models.HistoryQuery) ([]models.Bar, models.HistoryMeta, error) {
	var resp models.HistoryResponse
	if err := c.send(ctx, "/history", q.Params(), &resp); err != nil {
		return nil, models.HistoryMeta{}, err
	}

	switch resp.S {
	case models.StatusOK:
		bars := resp.Bars()
		return bars, resp.Meta(bars), nil
	case models.StatusNoData:
		return []models.Bar{}, resp.Meta(nil), nil
	}

	if msg := resp.ErrorText(); msg != "" {
		return nil, models.HistoryMeta{}, &models.ServerError{Message: msg}
	}
	return nil, models.HistoryMeta{}, models.ErrUnknown
}
