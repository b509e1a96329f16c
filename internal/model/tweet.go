// Package model defines the data structures used throughout the application.
package model

import "time"

// Tweet is one stored status pulled from the Twitter API.
//
// TWO IDENTIFIERS:
//   - ID is our own surrogate key (SQLite rowid), assigned on insert.
//   - IDStr is Twitter's id in its string form. Twitter ids are 64-bit and do
//     not fit in a float64 mantissa, so we never handle them as numbers.
//
// Raw keeps the original item JSON exactly as the API sent it (compacted), so
// fields we do not map today are still available later.
type Tweet struct {
	ID                     int64     `json:"id"`
	IDStr                  string    `json:"idStr"`
	Text                   string    `json:"text"`
	Source                 string    `json:"source"`
	UserID                 int64     `json:"userId"`
	UserName               string    `json:"userName"`
	UserProfileImageURL    string    `json:"userProfileImageUrl"`
	EntitiesMedia0MediaURL string    `json:"entitiesMedia0MediaUrl,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
	Approved               bool      `json:"approved"`
	Raw                    string    `json:"raw"`
}

// TweetDateFields lists the flattened keys that hold timestamps.
var TweetDateFields = []string{"created_at"}
