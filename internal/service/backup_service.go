package service

import (
	"bytes"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const backupConcurrency = 4

type BackupService struct {
	Store   docstore.Store
	Storage *StorageService
	Now     func() time.Time
}

func NewBackupService(store docstore.Store, storage *StorageService) *BackupService {
	return &BackupService{Store: store, Storage: storage, Now: time.Now}
}

type BackupFile struct {
	Collection string `json:"collection"`
	Object     string `json:"object"`
	URL        string `json:"url"`
	Documents  int    `json:"documents"`
	Bytes      int    `json:"bytes"`
}

type BackupReport struct {
	Stamp     string       `json:"stamp"`
	Prefix    string       `json:"prefix"`
	Documents int          `json:"documents"`
	Files     []BackupFile `json:"files"`
}

// DefaultBackupCollections is every collection the game owns.
func DefaultBackupCollections() []string {
	out := append([]string{}, util.CatalogCollections...)
	return append(out, util.UserDataCollections...)
}

// Backup dumps collections concurrently into backups/<stamp>/. When users
// are included, every user's unlock subcollection is dumped as well.
func (s *BackupService) Backup(ctx context.Context, collections []string) (*BackupReport, error) {
	if len(collections) == 0 {
		collections = DefaultBackupCollections()
	}
	stamp := s.Now().UTC().Format(util.BackupStampFormat)
	report := &BackupReport{Stamp: stamp, Prefix: BackupPrefix(stamp)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backupConcurrency)

	dump := func(collection string, docs []docstore.Document) error {
		body, err := docstore.EncodeDocuments(docs)
		if err != nil {
			return fmt.Errorf("encode %s: %w", collection, err)
		}
		object := report.Prefix + docstore.FileName(collection)
		url, err := s.Storage.Upload(gctx, object, bytes.NewReader(body), int64(len(body)), "application/json")
		if err != nil {
			return fmt.Errorf("upload %s: %w", object, err)
		}
		mu.Lock()
		report.Files = append(report.Files, BackupFile{
			Collection: collection,
			Object:     object,
			URL:        url,
			Documents:  len(docs),
			Bytes:      len(body),
		})
		report.Documents += len(docs)
		mu.Unlock()
		logger.Log.Debug("collection backed up", zap.String("collection", collection), zap.Int("documents", len(docs)))
		return nil
	}

	for _, c := range collections {
		collection := c
		g.Go(func() error {
			docs, err := s.Store.Collection(gctx, collection)
			if err != nil {
				return fmt.Errorf("read %s: %w", collection, err)
			}
			if err := dump(collection, docs); err != nil {
				return err
			}
			if collection != util.CollectionUsers {
				return nil
			}
			for _, u := range docs {
				uid := u.ID
				g.Go(func() error {
					sub := util.UnlocksCollection(uid)
					unlocks, err := s.Store.Collection(gctx, sub)
					if err != nil {
						return fmt.Errorf("read %s: %w", sub, err)
					}
					if len(unlocks) == 0 {
						return nil
					}
					return dump(sub, unlocks)
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	sort.Slice(report.Files, func(i, j int) bool { return report.Files[i].Collection < report.Files[j].Collection })
	logger.Log.Info("backup finished",
		zap.String("prefix", report.Prefix),
		zap.Int("files", len(report.Files)),
		zap.Int("documents", report.Documents),
	)
	return report, nil
}
