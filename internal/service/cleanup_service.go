package service

import (
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type CleanupService struct {
	Store  docstore.Store
	Writes WriteSettings
}

func NewCleanupService(store docstore.Store, writes WriteSettings) *CleanupService {
	return &CleanupService{Store: store, Writes: writes}
}

type CleanOptions struct {
	// Confirm must be set; without it nothing is deleted.
	Confirm       bool
	AllowUserData bool
	DryRun        bool
}

type CleanReport struct {
	DryRun  bool                `json:"dryRun"`
	Deleted map[string]int      `json:"deleted"`
	Writes  docstore.WriteStats `json:"writes"`
}

// Clean deletes every document of the named collections.
func (s *CleanupService) Clean(ctx context.Context, collections []string, opts CleanOptions) (*CleanReport, error) {
	if !opts.Confirm && !opts.DryRun {
		return nil, util.ErrConfirmRequired
	}
	if len(collections) == 0 {
		collections = util.CatalogCollections
	}
	for _, c := range collections {
		if err := guardUserData(c, opts.AllowUserData); err != nil {
			return nil, err
		}
	}

	report := &CleanReport{DryRun: opts.DryRun, Deleted: make(map[string]int, len(collections))}
	w := s.Writes.NewWriter(s.Store, opts.DryRun)
	var errs []error
	for _, c := range collections {
		collection := c
		docs, err := s.Store.Collection(ctx, collection)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", collection, err))
			continue
		}
		for _, d := range docs {
			if err := w.Add(ctx, []docstore.Op{docstore.Delete(collection, d.ID)}, func(err error) {
				if err == nil {
					report.Deleted[collection]++
				}
			}); err != nil {
				return report, err
			}
		}
		logger.Log.Info("collection queued for deletion", zap.String("collection", collection), zap.Int("documents", len(docs)))
	}

	stats, err := w.Close(ctx)
	report.Writes = stats
	if err != nil {
		errs = append(errs, err)
	}
	return report, errors.Join(errs...)
}
