package model

import "codequest_admin/pkg/docstore"

// Catalog is a point-in-time snapshot of the content collections.
type Catalog struct {
	Missions     []docstore.Document
	Achievements []docstore.Document
	Enemies      []docstore.Document
	Questions    []docstore.Document

	// QuestionsLoaded is false when the questions collection was skipped;
	// question references are then not checked.
	QuestionsLoaded bool
}

type CatalogIndex struct {
	Missions        map[string]struct{}
	Achievements    map[string]struct{}
	Enemies         map[string]struct{}
	Questions       map[string]struct{}
	QuestionsLoaded bool
}

func (c *Catalog) Index() CatalogIndex {
	return CatalogIndex{
		Missions:        idSet(c.Missions),
		Achievements:    idSet(c.Achievements),
		Enemies:         idSet(c.Enemies),
		Questions:       idSet(c.Questions),
		QuestionsLoaded: c.QuestionsLoaded,
	}
}

func (idx CatalogIndex) HasMission(id string) bool {
	_, ok := idx.Missions[id]
	return ok
}

func (idx CatalogIndex) HasEnemy(id string) bool {
	_, ok := idx.Enemies[id]
	return ok
}

func (idx CatalogIndex) HasQuestion(id string) bool {
	_, ok := idx.Questions[id]
	return ok
}

func idSet(docs []docstore.Document) map[string]struct{} {
	set := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		set[d.ID] = struct{}{}
	}
	return set
}
