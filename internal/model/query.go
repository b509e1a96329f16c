package model

import "math"

// Paging defaults for TweetQuery.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps Offset from overflowing at MaxPageSize.
	MaxPage = math.MaxInt / MaxPageSize
)

// TweetQuery is the listing descriptor passed from the moderation API to the
// store. Results are always ordered newest first (created_at DESC).
type TweetQuery struct {
	ApprovedOnly bool
	Page         int // 1-based
	PageSize     int
}

// Normalize clamps Page and PageSize into range.
func (q TweetQuery) Normalize() TweetQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Offset is the number of rows skipped for this page.
func (q TweetQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// TweetPage is one page of a listing.
type TweetPage struct {
	Items    []Tweet `json:"items"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
	Total    int     `json:"total"`
}
