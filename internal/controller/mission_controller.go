package controller

import (
	"codequest_admin/internal/service"
	"codequest_admin/internal/util"

	"github.com/gin-gonic/gin"
)

type MissionController struct {
	Reconciler *service.Reconciler
	Reports    *service.MissionReportService
}

func NewMissionController(reconciler *service.Reconciler, reports *service.MissionReportService) *MissionController {
	return &MissionController{Reconciler: reconciler, Reports: reports}
}

// @Summary Validate the mission catalog
// @Description Runs the field checks on every mission and achievement without writing
// @Tags missions
// @Produce json
// @Security BearerAuth
// @Param questions query bool false "also check question references"
// @Success 200 {object} util.Response{data=service.CatalogReport}
// @Router /missions/validation [get]
func (c *MissionController) Validation(ctx *gin.Context) {
	withQuestions := ctx.Query("questions") == "true"
	report, err := c.Reconciler.Validate(ctx.Request.Context(), withQuestions)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary Mission catalog report
// @Tags missions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.MissionReport}
// @Router /missions/report [get]
func (c *MissionController) Report(ctx *gin.Context) {
	report, err := c.Reports.Report(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
