package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"

	// BackupStampFormat names backup prefixes; it sorts chronologically.
	BackupStampFormat = "20060102T150405Z"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Firestore collections.
const (
	CollectionMissions         = "missions"
	CollectionAchievements     = "achievements"
	CollectionEnemies          = "enemies"
	CollectionQuestions        = "questions"
	CollectionUsers            = "users"
	CollectionLeaderboard      = "leaderboard"
	CollectionUsernames        = "usernames"
	CollectionUserAchievements = "user_achievements"
	CollectionCodeExercises    = "code_exercises"
	CollectionItems            = "items"
	CollectionRewards          = "rewards"
)

// CatalogCollections are content collections safe to wipe and reload.
var CatalogCollections = []string{
	CollectionAchievements,
	CollectionEnemies,
	CollectionItems,
	CollectionQuestions,
	CollectionRewards,
	CollectionMissions,
	CollectionCodeExercises,
}

// UserDataCollections hold player state.
var UserDataCollections = []string{
	CollectionUsers,
	CollectionLeaderboard,
	CollectionUsernames,
}

// UnlocksCollection is the per-user achievement subcollection path.
func UnlocksCollection(userID string) string {
	return CollectionUserAchievements + "/" + userID + "/achievements"
}

func IsUserDataCollection(name string) bool {
	for _, c := range UserDataCollections {
		if c == name {
			return true
		}
	}
	return false
}
