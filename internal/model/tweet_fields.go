package model

import "github.com/sakif/tweetsync/internal/mapper"

// TweetFields is the settable-field table for Tweet. The payload's numeric
// "id" is deliberately absent so it never lands on the surrogate key; ID,
// Approved and Raw are owned by the store and the sync engine.
var TweetFields = mapper.NewFieldTable(map[string]mapper.Setter[Tweet]{
	"idStr": func(t *Tweet, v any) (err error) {
		t.IDStr, err = mapper.String(v)
		return err
	},
	"text": func(t *Tweet, v any) (err error) {
		t.Text, err = mapper.String(v)
		return err
	},
	"source": func(t *Tweet, v any) (err error) {
		t.Source, err = mapper.String(v)
		return err
	},
	"userId": func(t *Tweet, v any) (err error) {
		t.UserID, err = mapper.Int64(v)
		return err
	},
	"userName": func(t *Tweet, v any) (err error) {
		t.UserName, err = mapper.String(v)
		return err
	},
	"userProfileImageUrl": func(t *Tweet, v any) (err error) {
		t.UserProfileImageURL, err = mapper.String(v)
		return err
	},
	"entitiesMedia0MediaUrl": func(t *Tweet, v any) (err error) {
		t.EntitiesMedia0MediaURL, err = mapper.String(v)
		return err
	},
	"createdAt": func(t *Tweet, v any) (err error) {
		t.CreatedAt, err = mapper.Time(v)
		return err
	},
})
