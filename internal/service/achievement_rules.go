package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/util"
	"fmt"
	"sort"
)

// EligibilityContext carries the catalog facts the eligibility rules need.
type EligibilityContext struct {
	// BattleMissions holds ids of missions with at least one battle objective.
	BattleMissions map[string]struct{}
	// KnownMissions holds every mission id; required ids outside it are
	// dangling and ignored. A nil set disables the check.
	KnownMissions map[string]struct{}
}

func NewEligibilityContext(missions []model.Mission) EligibilityContext {
	known := make(map[string]struct{}, len(missions))
	for _, m := range missions {
		known[m.ID] = struct{}{}
	}
	return EligibilityContext{
		BattleMissions: ClassifyBattleMissions(missions),
		KnownMissions:  known,
	}
}

// ClassifyBattleMissions returns the ids of battle missions.
func ClassifyBattleMissions(missions []model.Mission) map[string]struct{} {
	set := make(map[string]struct{})
	for i := range missions {
		if missions[i].IsBattle() {
			set[missions[i].ID] = struct{}{}
		}
	}
	return set
}

func (ec EligibilityContext) liveMissions(ids []string) []string {
	if ec.KnownMissions == nil {
		return ids
	}
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := ec.KnownMissions[id]; ok {
			live = append(live, id)
		}
	}
	return live
}

type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
}

// CheckEligibility decides whether the user has earned the achievement.
// An achievement without achievementType follows the mission rules.
// Already-unlocked state is not considered here.
func CheckEligibility(user *model.User, a *model.Achievement, ec EligibilityContext) Eligibility {
	completed := stringSet(user.CompletedMissions)

	switch {
	case a.Category == model.CategoryCodeExercise || a.AchievementType == model.AchievementTypeCodeExercise:
		done := stringSet(user.CompletedMissions, user.CompletedExercises)
		targets := a.RequiredMissionIDs
		if id := a.ExerciseID(); id != "" {
			targets = []string{id}
		}
		if len(targets) == 0 {
			return Eligibility{Reason: "no exercise configured"}
		}
		if id, ok := firstIn(targets, done); ok {
			return Eligibility{Eligible: true, Reason: "completed exercise " + id}
		}
		return Eligibility{Reason: "exercise not completed"}

	case a.AchievementType == "" || a.AchievementType == model.AchievementTypeMission || a.AchievementType == model.AchievementTypeBattle:
		if len(a.RequiredMissionIDs) > 0 {
			live := ec.liveMissions(a.RequiredMissionIDs)
			if len(live) == 0 {
				return Eligibility{Reason: "every required mission is dangling"}
			}
			if id, ok := firstIn(live, completed); ok {
				return Eligibility{Eligible: true, Reason: "completed required mission " + id}
			}
			return Eligibility{Reason: "no required mission completed"}
		}
		if a.Category == model.CategoryBattle {
			if id, ok := firstIn(user.CompletedMissions, ec.BattleMissions); ok {
				return Eligibility{Eligible: true, Reason: "completed battle mission " + id}
			}
			return Eligibility{Reason: "no battle mission completed"}
		}
		if len(completed) > 0 {
			return Eligibility{Eligible: true, Reason: "completed a mission"}
		}
		return Eligibility{Reason: "no mission completed"}
	}
	return Eligibility{Reason: fmt.Sprintf("achievementType %q is not evaluated", a.AchievementType)}
}

func IsEligible(user *model.User, a *model.Achievement, ec EligibilityContext) bool {
	return CheckEligibility(user, a, ec).Eligible
}

// GrantPlan lists achievements a user qualifies for and does not hold yet.
type GrantPlan struct {
	UserID       string              `json:"userId"`
	Achievements []model.Achievement `json:"achievements"`
}

func (p GrantPlan) IDs() []string {
	ids := make([]string, len(p.Achievements))
	for i, a := range p.Achievements {
		ids[i] = a.ID
	}
	return ids
}

func (p GrantPlan) Empty() bool {
	return len(p.Achievements) == 0
}

// PlanGrants returns eligible achievements minus the ones already in
// unlockedAchievements, in catalog order.
func PlanGrants(user *model.User, achievements []model.Achievement, ec EligibilityContext) GrantPlan {
	plan := GrantPlan{UserID: user.ID}
	held := stringSet(user.UnlockedAchievements)
	for i := range achievements {
		a := &achievements[i]
		if _, ok := held[a.ID]; ok {
			continue
		}
		if IsEligible(user, a, ec) {
			plan.Achievements = append(plan.Achievements, *a)
		}
	}
	return plan
}

// DanglingRequirements reports required mission ids that name no mission.
func DanglingRequirements(achievements []model.Achievement, ec EligibilityContext) []model.Issue {
	if ec.KnownMissions == nil {
		return nil
	}
	var issues []model.Issue
	for _, a := range achievements {
		for _, id := range a.RequiredMissionIDs {
			if _, ok := ec.KnownMissions[id]; !ok {
				issues = append(issues, model.NewWarning(model.DanglingReference, util.CollectionAchievements, a.ID,
					"requiredMissionIds", fmt.Sprintf("mission %q does not exist; skipped", id)))
			}
		}
	}
	return issues
}

func stringSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, l := range lists {
		for _, s := range l {
			set[s] = struct{}{}
		}
	}
	return set
}

func firstIn(ids []string, set map[string]struct{}) (string, bool) {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return id, true
		}
	}
	return "", false
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
