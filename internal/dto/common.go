package dto

// PageResponse is a 0-based page of an ordered listing.
type PageResponse[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
