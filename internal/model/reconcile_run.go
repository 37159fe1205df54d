package model

import "time"

const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// ReconcileRun is one row of the run ledger kept in MySQL.
type ReconcileRun struct {
	UUIDBase
	Command       string     `gorm:"size:50;index;not null" json:"command"`
	DryRun        bool       `gorm:"default:false" json:"dryRun"`
	Status        string     `gorm:"size:20;not null;default:'running'" json:"status"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
	Validated     int        `gorm:"default:0" json:"validated"`
	Invalid       int        `gorm:"default:0" json:"invalid"`
	Normalized    int        `gorm:"default:0" json:"normalized"`
	Granted       int        `gorm:"default:0" json:"granted"`
	ScoresUpdated int        `gorm:"default:0" json:"scoresUpdated"`
	Warnings      int        `gorm:"default:0" json:"warnings"`
	Errors        int        `gorm:"default:0" json:"errors"`
	Detail        string     `gorm:"type:text" json:"detail,omitempty"`
}

func (ReconcileRun) TableName() string {
	return "reconcile_runs"
}
