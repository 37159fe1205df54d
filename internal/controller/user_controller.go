package controller

import (
	"codequest_admin/internal/service"
	"codequest_admin/internal/util"

	"github.com/gin-gonic/gin"
)

// UserController serves read-only views of one player.
type UserController struct {
	Leaderboard  *service.LeaderboardService
	Reports      *service.MissionReportService
	Achievements *service.AchievementService
}

func NewUserController(leaderboard *service.LeaderboardService, reports *service.MissionReportService, achievements *service.AchievementService) *UserController {
	return &UserController{Leaderboard: leaderboard, Reports: reports, Achievements: achievements}
}

// @Summary Mission availability for a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "user id"
// @Success 200 {object} util.Response{data=service.AvailabilityReport}
// @Failure 404 {object} util.Response
// @Router /users/{id}/availability [get]
func (c *UserController) Availability(ctx *gin.Context) {
	report, err := c.Reports.Availability(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary Recomputed score for a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "user id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /users/{id}/score [get]
func (c *UserController) Score(ctx *gin.Context) {
	score, user, err := c.Leaderboard.UserScore(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"userId":     user.ID,
		"username":   user.Username,
		"level":      user.EffectiveLevel(),
		"experience": user.Experience,
		"stats":      user.Stats,
		"score":      score,
	})
}

// @Summary Grant eligible achievements to a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "user id"
// @Param dryRun query bool false "report without writing"
// @Success 200 {object} util.Response{data=service.GrantReport}
// @Failure 404 {object} util.Response
// @Router /users/{id}/achievements [post]
func (c *UserController) GrantAchievements(ctx *gin.Context) {
	dryRun := ctx.Query("dryRun") == "true"
	report, err := c.Achievements.GrantForUser(ctx.Request.Context(), ctx.Param("id"), dryRun)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
