package model

import "time"

type LeaderboardEntry struct {
	UserID      string    `firestore:"userId" json:"userId"`
	Username    string    `firestore:"username" json:"username"`
	DisplayName string    `firestore:"displayName" json:"displayName,omitempty"`
	Score       int       `firestore:"score" json:"score"`
	LastUpdated time.Time `firestore:"lastUpdated" json:"lastUpdated,omitempty"`
}

// UsernameEntry is the reverse index stored at usernames/{lowercase username}.
type UsernameEntry struct {
	UID       string    `firestore:"uid" json:"uid"`
	Username  string    `firestore:"username" json:"username"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt,omitempty"`
}
