package service

import (
	"codequest_admin/pkg/docstore"
)

var DefaultQuestionIDs = []string{"q_basic_1", "q_basic_2", "q_basic_3"}

// BattleNormalizer rewrites legacy battle configurations into the
// canonical single-enemy shape.
type BattleNormalizer struct {
	DefaultQuestionIDs []string
}

func NewBattleNormalizer(defaultQuestionIDs []string) *BattleNormalizer {
	if len(defaultQuestionIDs) == 0 {
		defaultQuestionIDs = DefaultQuestionIDs
	}
	return &BattleNormalizer{DefaultQuestionIDs: append([]string(nil), defaultQuestionIDs...)}
}

// MissionNormalization describes which configurations of one mission changed.
type MissionNormalization struct {
	MissionID         string `json:"missionId"`
	Changed           bool   `json:"changed"`
	MissionConfig     bool   `json:"missionConfig"`
	ObjectiveConfigs  []int  `json:"objectiveConfigs,omitempty"`
	EnemyIDsCollapsed int    `json:"enemyIdsCollapsed"`
}

// NormalizeConfig returns a normalized copy of one battle configuration
// and whether anything changed. The input is not modified.
//
//  1. enemyId takes enemyIds[0] when it is missing or empty.
//  2. enemyIds is dropped once enemyId is set.
//  3. questionIds takes the default question set when absent.
func (n *BattleNormalizer) NormalizeConfig(cfg map[string]interface{}) (map[string]interface{}, bool) {
	out := docstore.CloneMap(cfg)
	if out == nil {
		out = make(map[string]interface{})
	}
	changed := false

	enemyID, _ := docstore.AsString(out["enemyId"])
	if enemyID == "" {
		if ids, ok := docstore.AsSlice(out["enemyIds"]); ok && len(ids) > 0 {
			if first, ok := ids[0].(string); ok && first != "" {
				out["enemyId"] = first
				enemyID = first
				changed = true
			}
		}
	}
	if _, legacy := out["enemyIds"]; legacy && enemyID != "" {
		delete(out, "enemyIds")
		changed = true
	}
	if v, ok := out["questionIds"]; !ok || v == nil {
		ids := make([]interface{}, len(n.DefaultQuestionIDs))
		for i, id := range n.DefaultQuestionIDs {
			ids[i] = id
		}
		out["questionIds"] = ids
		changed = true
	}
	return out, changed
}

// NormalizeMission normalizes the mission-level configuration and every
// objective configuration independently. updates maps top-level fields to
// their replacement values and is nil when nothing changed. Objectives are
// replaced as a whole array because array elements cannot be updated in place.
func (n *BattleNormalizer) NormalizeMission(doc docstore.Document) (map[string]interface{}, MissionNormalization) {
	res := MissionNormalization{MissionID: doc.ID}
	updates := make(map[string]interface{})

	if bc, ok := docstore.AsMap(doc.Data["battleConfig"]); ok {
		if norm, changed := n.NormalizeConfig(bc); changed {
			updates["battleConfig"] = norm
			res.MissionConfig = true
			if collapsed(bc, norm) {
				res.EnemyIDsCollapsed++
			}
		}
	}

	if items, ok := docstore.AsSlice(doc.Data["objectives"]); ok {
		objectives := make([]interface{}, len(items))
		for i, it := range items {
			obj, ok := docstore.AsMap(it)
			if !ok {
				objectives[i] = docstore.Clone(it)
				continue
			}
			obj = docstore.CloneMap(obj)
			if bc, ok := docstore.AsMap(obj["battleConfig"]); ok {
				if norm, changed := n.NormalizeConfig(bc); changed {
					obj["battleConfig"] = norm
					res.ObjectiveConfigs = append(res.ObjectiveConfigs, i)
					if collapsed(bc, norm) {
						res.EnemyIDsCollapsed++
					}
				}
			}
			objectives[i] = obj
		}
		if len(res.ObjectiveConfigs) > 0 {
			updates["objectives"] = objectives
		}
	}

	if len(updates) == 0 {
		return nil, res
	}
	res.Changed = true
	return updates, res
}

func collapsed(before, after map[string]interface{}) bool {
	_, had := before["enemyIds"]
	_, has := after["enemyIds"]
	return had && !has
}
