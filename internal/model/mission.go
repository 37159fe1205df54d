package model

// Mission and objective types the reconciler branches on.
const (
	MissionTypeBattle   = "batalla"
	MissionTypeBattleEN = "battle"
)

func IsBattleType(t string) bool {
	return t == MissionTypeBattle || t == MissionTypeBattleEN
}

type Mission struct {
	ID            string        `firestore:"-" json:"id"`
	Name          string        `firestore:"name" json:"name,omitempty"`
	Title         string        `firestore:"title" json:"title,omitempty"`
	Description   string        `firestore:"description" json:"description,omitempty"`
	Zone          string        `firestore:"zone" json:"zone,omitempty"`
	Status        string        `firestore:"status" json:"status,omitempty"`
	Type          string        `firestore:"type" json:"type,omitempty"`
	Order         *int          `firestore:"order" json:"order,omitempty"`
	LevelRequired int           `firestore:"levelRequired" json:"levelRequired"`
	Requirements  *Requirements `firestore:"requirements" json:"requirements,omitempty"`
	Objectives    []Objective   `firestore:"objectives" json:"objectives,omitempty"`
	Rewards       interface{}   `firestore:"rewards" json:"rewards,omitempty"`
	BattleConfig  *BattleConfig `firestore:"battleConfig" json:"battleConfig,omitempty"`
	Unlocks       []string      `firestore:"unlocks" json:"unlocks,omitempty"`
	IsRepeatable  bool          `firestore:"isRepeatable" json:"isRepeatable"`
}

type Requirements struct {
	CompletedMissionID string `firestore:"completedMissionId" json:"completedMissionId,omitempty"`
}

type Objective struct {
	Type         string        `firestore:"type" json:"type"`
	Description  string        `firestore:"description" json:"description"`
	Target       int           `firestore:"target" json:"target"`
	QuestionIDs  []string      `firestore:"questionIds" json:"questionIds,omitempty"`
	BattleConfig *BattleConfig `firestore:"battleConfig" json:"battleConfig,omitempty"`
}

type BattleConfig struct {
	EnemyID                string   `firestore:"enemyId" json:"enemyId,omitempty"`
	EnemyIDs               []string `firestore:"enemyIds" json:"enemyIds,omitempty"`
	QuestionIDs            []string `firestore:"questionIds" json:"questionIds,omitempty"`
	PlayerHealthMultiplier float64  `firestore:"playerHealthMultiplier" json:"playerHealthMultiplier"`
	EnemyAttackMultiplier  float64  `firestore:"enemyAttackMultiplier" json:"enemyAttackMultiplier"`
	Environment            string   `firestore:"environment" json:"environment,omitempty"`
}

// DisplayName prefers name and falls back to the legacy title field.
func (m *Mission) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Title
}

// RequiredMission returns the prerequisite mission id, if any.
func (m *Mission) RequiredMission() string {
	if m.Requirements == nil {
		return ""
	}
	return m.Requirements.CompletedMissionID
}

// IsBattle reports whether any objective is a battle.
func (m *Mission) IsBattle() bool {
	for _, o := range m.Objectives {
		if IsBattleType(o.Type) {
			return true
		}
	}
	return false
}

// EnemyRefs lists every enemy id the mission or its objectives point at.
func (m *Mission) EnemyRefs() []string {
	var refs []string
	collect := func(bc *BattleConfig) {
		if bc == nil {
			return
		}
		if bc.EnemyID != "" {
			refs = append(refs, bc.EnemyID)
		}
		refs = append(refs, bc.EnemyIDs...)
	}
	collect(m.BattleConfig)
	for i := range m.Objectives {
		collect(m.Objectives[i].BattleConfig)
	}
	return refs
}

func (m *Mission) applyDefaults() {
	if m.LevelRequired <= 0 {
		m.LevelRequired = 1
	}
	for i := range m.Objectives {
		if m.Objectives[i].Target <= 0 {
			m.Objectives[i].Target = 1
		}
		m.Objectives[i].BattleConfig.applyDefaults()
	}
	m.BattleConfig.applyDefaults()
}

func (bc *BattleConfig) applyDefaults() {
	if bc == nil {
		return
	}
	if bc.PlayerHealthMultiplier == 0 {
		bc.PlayerHealthMultiplier = 1.0
	}
	if bc.EnemyAttackMultiplier == 0 {
		bc.EnemyAttackMultiplier = 1.0
	}
}

type Enemy struct {
	ID          string `firestore:"-" json:"id"`
	Name        string `firestore:"name" json:"name"`
	Description string `firestore:"description" json:"description,omitempty"`
}
