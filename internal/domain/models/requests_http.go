package models

// Requests for the HTTP endpoints. Defined in domain for consistency and reuse.

type PredictionsRequest struct {
	Symbols string `query:"symbols" json:"symbols" validate:"required"`
	Force   bool   `query:"force" json:"force"`
}

type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type WatchlistRequest struct {
	UserID string `query:"user_id" json:"user_id" validate:"required"`
}

type WatchlistToggleRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Ticker string `json:"ticker" validate:"required,min=1,max=10"`
	Action string `json:"action" default:"add" validate:"oneof=add remove"`
}
