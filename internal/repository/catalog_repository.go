package repository

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/docstore"
	"context"
	"fmt"
	"sort"
)

type CatalogRepository struct {
	Store docstore.Store
}

func NewCatalogRepository(store docstore.Store) *CatalogRepository {
	return &CatalogRepository{Store: store}
}

// Load snapshots missions, achievements and enemies. Questions are only
// read when withQuestions is set since that collection is the largest.
func (r *CatalogRepository) Load(ctx context.Context, withQuestions bool) (*model.Catalog, error) {
	missions, err := r.Missions(ctx)
	if err != nil {
		return nil, err
	}
	achievements, err := r.Store.Collection(ctx, util.CollectionAchievements)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	enemies, err := r.Store.Collection(ctx, util.CollectionEnemies)
	if err != nil {
		return nil, fmt.Errorf("load enemies: %w", err)
	}

	c := &model.Catalog{Missions: missions, Achievements: achievements, Enemies: enemies}
	if withQuestions {
		questions, err := r.Store.Collection(ctx, util.CollectionQuestions)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		c.Questions = questions
		c.QuestionsLoaded = true
	}
	return c, nil
}

// Missions returns missions sorted by order; missions without one go last.
func (r *CatalogRepository) Missions(ctx context.Context) ([]docstore.Document, error) {
	docs, err := r.Store.Collection(ctx, util.CollectionMissions)
	if err != nil {
		return nil, fmt.Errorf("load missions: %w", err)
	}
	SortByOrder(docs)
	return docs, nil
}

func (r *CatalogRepository) Mission(ctx context.Context, id string) (docstore.Document, error) {
	doc, err := r.Store.Get(ctx, util.CollectionMissions, id)
	if docstore.IsNotFound(err) {
		return docstore.Document{}, fmt.Errorf("%s: %w", id, util.ErrMissionNotFound)
	}
	return doc, err
}

func SortByOrder(docs []docstore.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		oi, iok := docstore.AsInt(docs[i].Data["order"])
		oj, jok := docstore.AsInt(docs[j].Data["order"])
		switch {
		case iok && jok && oi != oj:
			return oi < oj
		case iok != jok:
			return iok
		}
		return docs[i].ID < docs[j].ID
	})
}
