package model

import (
	"codequest_admin/pkg/docstore"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Decode maps a raw document tree onto a tagged struct. Number shapes are
// coerced (Firestore int64, JSON float64) and RFC 3339 strings become times.
func Decode(data map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "firestore",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}

func DecodeMission(doc docstore.Document) (Mission, error) {
	var m Mission
	if err := Decode(doc.Data, &m); err != nil {
		return Mission{}, fmt.Errorf("decode mission %s: %w", doc.ID, err)
	}
	m.ID = doc.ID
	m.applyDefaults()
	return m, nil
}

func DecodeAchievement(doc docstore.Document) (Achievement, error) {
	var a Achievement
	if err := Decode(doc.Data, &a); err != nil {
		return Achievement{}, fmt.Errorf("decode achievement %s: %w", doc.ID, err)
	}
	a.ID = doc.ID
	return a, nil
}

func DecodeUser(doc docstore.Document) (User, error) {
	var u User
	if err := Decode(doc.Data, &u); err != nil {
		return User{}, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	u.ID = doc.ID
	return u, nil
}

func DecodeEnemy(doc docstore.Document) (Enemy, error) {
	var e Enemy
	if err := Decode(doc.Data, &e); err != nil {
		return Enemy{}, fmt.Errorf("decode enemy %s: %w", doc.ID, err)
	}
	e.ID = doc.ID
	return e, nil
}

func DecodeLeaderboardEntry(doc docstore.Document) (LeaderboardEntry, error) {
	var e LeaderboardEntry
	if err := Decode(doc.Data, &e); err != nil {
		return LeaderboardEntry{}, fmt.Errorf("decode leaderboard entry %s: %w", doc.ID, err)
	}
	if e.UserID == "" {
		e.UserID = doc.ID
	}
	return e, nil
}
