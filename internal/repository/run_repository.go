package repository

import (
	"codequest_admin/internal/model"

	"gorm.io/gorm"
)

type RunRepository struct {
	DB *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{DB: db}
}

func (r *RunRepository) Create(run *model.ReconcileRun) error {
	return r.DB.Create(run).Error
}

func (r *RunRepository) Update(run *model.ReconcileRun) error {
	return r.DB.Save(run).Error
}

func (r *RunRepository) FindByID(id string) (*model.ReconcileRun, error) {
	var run model.ReconcileRun
	if err := r.DB.Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *RunRepository) ListRecent(command string, limit int) ([]model.ReconcileRun, error) {
	var runs []model.ReconcileRun
	q := r.DB.Order("started_at desc").Limit(limit)
	if command != "" {
		q = q.Where("command = ?", command)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
