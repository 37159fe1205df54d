package model

import "time"

const (
	CategoryBattle       = "battle"
	CategoryCodeExercise = "code_exercise"

	AchievementTypeMission      = "mission"
	AchievementTypeBattle       = "battle"
	AchievementTypeCodeExercise = "code_exercise"
)

type Achievement struct {
	ID                 string                 `firestore:"-" json:"id"`
	Name               string                 `firestore:"name" json:"name"`
	Description        string                 `firestore:"description" json:"description,omitempty"`
	IconURL            string                 `firestore:"iconUrl" json:"iconUrl,omitempty"`
	Category           string                 `firestore:"category" json:"category"`
	Points             int                    `firestore:"points" json:"points"`
	AchievementType    string                 `firestore:"achievementType" json:"achievementType"`
	RequiredMissionIDs []string               `firestore:"requiredMissionIds" json:"requiredMissionIds"`
	Conditions         map[string]interface{} `firestore:"conditions" json:"conditions,omitempty"`
	RewardID           string                 `firestore:"rewardId" json:"rewardId,omitempty"`
}

// ExerciseID is the exercise a code_exercise achievement waits for.
func (a *Achievement) ExerciseID() string {
	if s, ok := a.Conditions["exerciseId"].(string); ok {
		return s
	}
	return ""
}

// UnlockRecord is stored at user_achievements/{uid}/achievements/{achievementId}.
type UnlockRecord struct {
	AchievementID string    `firestore:"achievementId" json:"achievementId"`
	Name          string    `firestore:"name" json:"name"`
	Description   string    `firestore:"description" json:"description"`
	IconURL       string    `firestore:"iconUrl" json:"iconUrl"`
	Category      string    `firestore:"category" json:"category"`
	Points        int       `firestore:"points" json:"points"`
	UnlockedDate  time.Time `firestore:"unlockedDate" json:"unlockedDate"`
}

// NewUnlockRecordFields builds the document body of a fresh unlock; the
// unlock date is left to the caller so the store can stamp it.
func NewUnlockRecordFields(a *Achievement) map[string]interface{} {
	return map[string]interface{}{
		"achievementId": a.ID,
		"name":          a.Name,
		"description":   a.Description,
		"iconUrl":       a.IconURL,
		"category":      a.Category,
		"points":        a.Points,
	}
}
