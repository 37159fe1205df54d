package service

import (
	"codequest_admin/internal/model"
	"codequest_admin/internal/repository"
	"codequest_admin/pkg/docstore"
	"context"
	"fmt"
	"sort"
)

const unspecifiedType = "unspecified"

type MissionReportService struct {
	CatalogRepo *repository.CatalogRepository
	UserRepo    *repository.UserRepository
}

func NewMissionReportService(catalogRepo *repository.CatalogRepository, userRepo *repository.UserRepository) *MissionReportService {
	return &MissionReportService{CatalogRepo: catalogRepo, UserRepo: userRepo}
}

type MissionSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Order         *int   `json:"order,omitempty"`
	LevelRequired int    `json:"levelRequired"`
	Requires      string `json:"requires,omitempty"`
	Battle        bool   `json:"battle"`
}

type TypeGroup struct {
	Type     string           `json:"type"`
	Count    int              `json:"count"`
	Missions []MissionSummary `json:"missions"`
}

type MissionReport struct {
	Total        int           `json:"total"`
	ByType       []TypeGroup   `json:"byType"`
	MissingOrder []string      `json:"missingOrder"`
	Battle       []string      `json:"battle"`
	Issues       []model.Issue `json:"issues"`
}

// Report groups missions by type and lists the ones without an order.
func (s *MissionReportService) Report(ctx context.Context) (*MissionReport, error) {
	docs, err := s.CatalogRepo.Missions(ctx)
	if err != nil {
		return nil, err
	}
	return BuildMissionReport(docs), nil
}

func BuildMissionReport(docs []docstore.Document) *MissionReport {
	missions, issues := decodeMissions(docs)
	report := &MissionReport{Total: len(docs), Issues: issues}

	groups := make(map[string]*TypeGroup)
	for i := range missions {
		m := &missions[i]
		typ := m.Type
		if typ == "" {
			typ = unspecifiedType
		}
		g, ok := groups[typ]
		if !ok {
			g = &TypeGroup{Type: typ}
			groups[typ] = g
		}
		g.Count++
		g.Missions = append(g.Missions, summarize(m))

		if m.Order == nil {
			report.MissingOrder = append(report.MissingOrder, m.ID)
		}
		if m.IsBattle() {
			report.Battle = append(report.Battle, m.ID)
		}
	}

	for _, g := range groups {
		report.ByType = append(report.ByType, *g)
	}
	sort.Slice(report.ByType, func(i, j int) bool {
		if report.ByType[i].Count != report.ByType[j].Count {
			return report.ByType[i].Count > report.ByType[j].Count
		}
		return report.ByType[i].Type < report.ByType[j].Type
	})
	return report
}

func summarize(m *model.Mission) MissionSummary {
	return MissionSummary{
		ID:            m.ID,
		Name:          m.DisplayName(),
		Type:          m.Type,
		Order:         m.Order,
		LevelRequired: m.LevelRequired,
		Requires:      m.RequiredMission(),
		Battle:        m.IsBattle(),
	}
}

type MissionAvailability struct {
	MissionSummary
	Unlocked  bool     `json:"unlocked"`
	Completed bool     `json:"completed"`
	Reasons   []string `json:"reasons,omitempty"`
}

type AvailabilityReport struct {
	UserID    string                `json:"userId"`
	Level     int                   `json:"level"`
	Completed int                   `json:"completed"`
	Unlocked  int                   `json:"unlocked"`
	Missions  []MissionAvailability `json:"missions"`
}

// Availability explains, mission by mission, whether the user can start it.
func (s *MissionReportService) Availability(ctx context.Context, userID string) (*AvailabilityReport, error) {
	userDoc, err := s.UserRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := model.DecodeUser(userDoc)
	if err != nil {
		return nil, err
	}
	docs, err := s.CatalogRepo.Missions(ctx)
	if err != nil {
		return nil, err
	}
	missions, _ := decodeMissions(docs)
	return CheckAvailability(&user, missions), nil
}

func CheckAvailability(user *model.User, missions []model.Mission) *AvailabilityReport {
	report := &AvailabilityReport{
		UserID:    user.ID,
		Level:     user.EffectiveLevel(),
		Completed: len(user.CompletedMissions),
	}
	for i := range missions {
		m := &missions[i]
		a := MissionAvailability{MissionSummary: summarize(m), Completed: user.HasCompleted(m.ID)}

		required := m.LevelRequired
		if required <= 0 {
			required = 1
		}
		if report.Level < required {
			a.Reasons = append(a.Reasons, fmt.Sprintf("level %d below required %d", report.Level, required))
		}
		if prereq := m.RequiredMission(); prereq != "" && !user.HasCompleted(prereq) {
			a.Reasons = append(a.Reasons, fmt.Sprintf("requires mission %s", prereq))
		}
		a.Unlocked = len(a.Reasons) == 0
		if a.Unlocked {
			report.Unlocked++
		}
		report.Missions = append(report.Missions, a)
	}
	return report
}
