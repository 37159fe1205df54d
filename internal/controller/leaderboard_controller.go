package controller

import (
	"codequest_admin/internal/service"
	"codequest_admin/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	Service *service.LeaderboardService
}

func NewLeaderboardController(svc *service.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{Service: svc}
}

// @Summary Top leaderboard entries
// @Description Reads Redis when it is configured and populated, Firestore otherwise
// @Tags leaderboard
// @Produce json
// @Security BearerAuth
// @Param limit query int false "number of entries (1-100)" default(10)
// @Success 200 {object} util.Response{data=util.ListResponse}
// @Failure 400 {object} util.Response
// @Router /leaderboard [get]
func (c *LeaderboardController) Top(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 || limit > 100 {
		util.BadRequest(ctx, "limit must be between 1 and 100")
		return
	}

	entries, err := c.Service.Top(ctx.Request.Context(), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.ListResponse{List: entries, Total: len(entries)})
}
