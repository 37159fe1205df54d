package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

type ImportService struct {
	Store   docstore.Store
	Storage *StorageService
	Writes  WriteSettings
}

func NewImportService(store docstore.Store, storage *StorageService, writes WriteSettings) *ImportService {
	return &ImportService{Store: store, Storage: storage, Writes: writes}
}

type ImportReport struct {
	Collection string              `json:"collection"`
	DryRun     bool                `json:"dryRun"`
	Read       int                 `json:"read"`
	Written    int                 `json:"written"`
	Skipped    int                 `json:"skipped"`
	Issues     []model.Issue       `json:"issues"`
	Writes     docstore.WriteStats `json:"writes"`
}

// ImportOptions controls Import and Restore. User-data collections are
// only written with AllowUserData.
type ImportOptions struct {
	DryRun        bool
	AllowUserData bool
}

// Import loads a JSON array or YAML sequence into collection. Each object
// becomes one document keyed by its "id"; objects without one are skipped.
func (s *ImportService) Import(ctx context.Context, collection string, r io.Reader, format string, opts ImportOptions) (*ImportReport, error) {
	if err := guardUserData(collection, opts.AllowUserData); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	records, err := docstore.DecodeRecords(data, format)
	if err != nil {
		if errors.Is(err, docstore.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%s: %w", format, util.ErrUnsupportedFormat)
		}
		return nil, err
	}

	report := &ImportReport{Collection: collection, DryRun: opts.DryRun, Read: len(records)}
	w := s.Writes.NewWriter(s.Store, opts.DryRun)
	for i, rec := range records {
		doc, ok := docstore.SplitID(rec)
		if !ok {
			report.Skipped++
			report.Issues = append(report.Issues, model.NewError(model.MissingRequiredField, collection,
				fmt.Sprintf("#%d", i), "id", "record has no id; skipped"))
			continue
		}
		if err := w.Add(ctx, []docstore.Op{docstore.Set(collection, doc.ID, doc.Data)}, func(err error) {
			if err == nil {
				report.Written++
			}
		}); err != nil {
			return report, err
		}
	}

	stats, err := w.Close(ctx)
	report.Writes = stats
	recordIssues(report.Issues)
	logger.Log.Info("import finished",
		zap.String("collection", collection),
		zap.Int("read", report.Read),
		zap.Int("written", report.Written),
		zap.Int("skipped", report.Skipped),
	)
	return report, err
}

// Restore imports every collection file of a backup prefix.
func (s *ImportService) Restore(ctx context.Context, prefix string, opts ImportOptions) ([]*ImportReport, error) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects, err := s.Storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no backup files under %s", prefix)
	}

	var reports []*ImportReport
	var errs []error
	for _, object := range objects {
		collection, ok := docstore.CollectionFromFile(object)
		if !ok {
			continue
		}
		if !opts.AllowUserData && isUserData(collection) {
			logger.Log.Info("skipping user data in restore", zap.String("collection", collection))
			continue
		}
		rc, err := s.Storage.Open(ctx, object)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", object, err))
			continue
		}
		report, err := s.Import(ctx, collection, rc, docstore.FormatJSON, opts)
		rc.Close()
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", collection, err))
		}
	}
	return reports, errors.Join(errs...)
}

// isUserData also covers per-user subcollections.
func isUserData(collection string) bool {
	return util.IsUserDataCollection(collection) ||
		strings.HasPrefix(collection, util.CollectionUserAchievements+"/")
}

func guardUserData(collection string, allowed bool) error {
	if isUserData(collection) && !allowed {
		return fmt.Errorf("%s: %w", collection, util.ErrProtectedData)
	}
	return nil
}
