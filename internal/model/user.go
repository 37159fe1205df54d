package model

import "strings"

type UserRole string

const (
	Viewer UserRole = "viewer"
	Admin  UserRole = "admin"
)

type User struct {
	ID                   string    `firestore:"-" json:"id"`
	Username             string    `firestore:"username" json:"username,omitempty"`
	Email                string    `firestore:"email" json:"email,omitempty"`
	DisplayName          string    `firestore:"displayName" json:"displayName,omitempty"`
	Level                int       `firestore:"level" json:"level"`
	Experience           int       `firestore:"experience" json:"experience"`
	Stats                UserStats `firestore:"stats" json:"stats"`
	CompletedMissions    []string  `firestore:"completedMissions" json:"completedMissions"`
	CompletedExercises   []string  `firestore:"completedExercises" json:"completedExercises,omitempty"`
	UnlockedAchievements []string  `firestore:"unlockedAchievements" json:"unlockedAchievements"`
}

type UserStats struct {
	BattlesWon        int `firestore:"battlesWon" json:"battlesWon"`
	CorrectAnswers    int `firestore:"correctAnswers" json:"correctAnswers"`
	QuestionsAnswered int `firestore:"questionsAnswered" json:"questionsAnswered"`
}

// EffectiveLevel treats a missing level as 1.
func (u *User) EffectiveLevel() int {
	if u.Level <= 0 {
		return 1
	}
	return u.Level
}

// PublicName is what the leaderboard shows: displayName, then email, then id.
func (u *User) PublicName() string {
	if strings.TrimSpace(u.DisplayName) != "" {
		return u.DisplayName
	}
	if strings.TrimSpace(u.Email) != "" {
		return u.Email
	}
	return u.ID
}

func (u *User) HasCompleted(missionID string) bool {
	for _, id := range u.CompletedMissions {
		if id == missionID {
			return true
		}
	}
	return false
}
