package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/model"
	"github.com/sakif/tweetsync/internal/repository"
)

var _ repository.TweetRepository = (*DB)(nil)

const tweetColumns = `id, id_str, text, source, user_id, user_name, user_profile_image_url,
	entities_media_0_media_url, created_at, approved, raw`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTweet(s rowScanner) (*model.Tweet, error) {
	var (
		t         model.Tweet
		createdAt string
	)
	if err := s.Scan(
		&t.ID, &t.IDStr, &t.Text, &t.Source,
		&t.UserID, &t.UserName, &t.UserProfileImageURL,
		&t.EntitiesMedia0MediaURL, &createdAt, &t.Approved, &t.Raw,
	); err != nil {
		return nil, err
	}
	ts, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	t.CreatedAt = ts
	return &t, nil
}

// GetByExternalID finds a tweet by Twitter's id_str.
func (db *DB) GetByExternalID(ctx context.Context, idStr string) (*model.Tweet, error) {
	t, err := scanTweet(db.conn.QueryRowContext(ctx,
		`SELECT `+tweetColumns+` FROM tweets WHERE id_str = ?`, idStr))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("tweet", idStr)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting tweet by id_str %s: %w", idStr, err)
	}
	return t, nil
}

// GetByID finds a tweet by its surrogate key.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.Tweet, error) {
	t, err := scanTweet(db.conn.QueryRowContext(ctx,
		`SELECT `+tweetColumns+` FROM tweets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("tweet", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting tweet %d: %w", id, err)
	}
	return t, nil
}

// CreateBatch inserts all tweets in one transaction. Either every new row is
// committed or none is.
//
// ON CONFLICT(id_str) DO NOTHING turns a duplicate into a no-op: RowsAffected
// is 0 and the tweet keeps ID == 0. The sync engine already filters known
// ids, so this only matters when two passes race.
func (db *DB) CreateBatch(ctx context.Context, tweets []*model.Tweet) (int, error) {
	if len(tweets) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning batch: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tweets (id_str, text, source, user_id, user_name, user_profile_image_url,
			entities_media_0_media_url, created_at, approved, raw)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id_str) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: preparing tweet insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	ids := make([]int64, len(tweets))
	for i, t := range tweets {
		res, err := stmt.ExecContext(ctx,
			t.IDStr, t.Text, t.Source, t.UserID, t.UserName, t.UserProfileImageURL,
			t.EntitiesMedia0MediaURL, formatTime(t.CreatedAt), t.Approved, t.Raw,
		)
		if err != nil {
			return 0, fmt.Errorf("sqlite: inserting tweet %s: %w", t.IDStr, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("sqlite: reading id of tweet %s: %w", t.IDStr, err)
		}
		ids[i] = id
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing batch: %w", err)
	}

	// IDs are only handed out once the rows are durable.
	for i, t := range tweets {
		if ids[i] != 0 {
			t.ID = ids[i]
		}
	}
	return inserted, nil
}

// UpdateApproval sets the moderation flag. Unknown ids are NotFound.
func (db *DB) UpdateApproval(ctx context.Context, id int64, approved bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE tweets SET approved = ? WHERE id = ?`, approved, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating approval of tweet %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("tweet", strconv.FormatInt(id, 10))
	}
	return nil
}

// List returns one page of tweets, newest first. Ties on created_at are
// broken by id so paging is stable.
func (db *DB) List(ctx context.Context, q model.TweetQuery) (*model.TweetPage, error) {
	q = q.Normalize()

	where := ""
	var args []any
	if q.ApprovedOnly {
		where = " WHERE approved = ?"
		args = append(args, true)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tweets`+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: counting tweets: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+tweetColumns+` FROM tweets`+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		append(args, q.PageSize, q.Offset())...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tweets: %w", err)
	}
	defer rows.Close()

	items := make([]model.Tweet, 0, q.PageSize)
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning tweet row: %w", err)
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tweets: %w", err)
	}

	return &model.TweetPage{
		Items:    items,
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    total,
	}, nil
}
