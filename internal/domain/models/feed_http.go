package models

// Requests for the feed HTTP endpoints.

// UpdateFiltersRequest carries a partial filter update. Nil fields keep the
// current value; empty (non-nil) Types/Sources mean "no restriction".
type UpdateFiltersRequest struct {
	TimeRange   *string   `json:"timeRange" validate:"omitempty,oneof=hour today yesterday all"`
	Types       *[]string `json:"types" validate:"omitempty,dive,oneof=sentiment narrative price"`
	MinStrength *float64  `json:"minStrength" validate:"omitempty,gte=0,lte=100"`
	Sources     *[]string `json:"sources" validate:"omitempty,dive,oneof=twitter reddit price"`
	SortBy      *string   `json:"sortBy" validate:"omitempty,oneof=latest strength"`
}

// UpdateScopeRequest replaces the watched asset set.
type UpdateScopeRequest struct {
	Assets []AssetRequest `json:"assets" validate:"dive"`
}

type AssetRequest struct {
	ID     string `json:"id" validate:"required"`
	Symbol string `json:"symbol" validate:"required"`
}

// FeedStateResponse is the view handed to rendering collaborators.
type FeedStateResponse struct {
	Signals   []Signal `json:"signals"`
	IsLoading bool     `json:"isLoading"`
	HasMore   bool     `json:"hasMore"`
	Error     string   `json:"error,omitempty"`
}
