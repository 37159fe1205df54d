package service

import "codequest_admin/internal/model"

const (
	pointsPerLevel     = 1000
	pointsPerBattleWon = 50
	pointsPerCorrect   = 10
	pointsPerMission   = 200
)

// Score is the single leaderboard formula:
//
//	level*1000 + experience + battlesWon*50 + correctAnswers*10 + completedMissions*200
//
// A missing level counts as 1 and negative counters count as 0.
func Score(u *model.User) int {
	return u.EffectiveLevel()*pointsPerLevel +
		nonNegative(u.Experience) +
		nonNegative(u.Stats.BattlesWon)*pointsPerBattleWon +
		nonNegative(u.Stats.CorrectAnswers)*pointsPerCorrect +
		len(u.CompletedMissions)*pointsPerMission
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
