package repository

import (
	"context"

	"github.com/sakif/tweetsync/internal/model"
)

// TweetRepository is the record store used by the sync engine and moderation.
//
// Lookups return apperror.NotFound when no row matches. Rows are only ever
// inserted by CreateBatch and only the approval flag is ever updated.
type TweetRepository interface {
	GetByExternalID(ctx context.Context, idStr string) (*model.Tweet, error)
	GetByID(ctx context.Context, id int64) (*model.Tweet, error)

	// CreateBatch inserts tweets in one transaction and returns how many rows
	// were written. A tweet whose id_str already exists is skipped, not an error.
	// Inserted tweets get their ID set.
	CreateBatch(ctx context.Context, tweets []*model.Tweet) (int, error)

	UpdateApproval(ctx context.Context, id int64, approved bool) error
	List(ctx context.Context, q model.TweetQuery) (*model.TweetPage, error)
}
