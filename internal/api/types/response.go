// internal/api/types/response.go
package types

// PaginatedResponse is one page of a listing, e.g. the trade log.
// TotalCount counts every row, not just the ones in Data.
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	TotalCount int64 `json:"total_count"`
}
