package controller

import (
	"codequest_admin/internal/service"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/logger"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReconcileController struct {
	Reconciler  *service.Reconciler
	Consistency *service.ConsistencyService
	Ledger      *service.RunLedger
}

func NewReconcileController(reconciler *service.Reconciler, consistency *service.ConsistencyService, ledger *service.RunLedger) *ReconcileController {
	return &ReconcileController{Reconciler: reconciler, Consistency: consistency, Ledger: ledger}
}

// @Summary Run a reconcile pass
// @Description An empty body runs the default pass with writes enabled
// @Tags reconcile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param options body service.ReconcileOptions false "run options"
// @Success 200 {object} util.Response{data=service.ReconcileSummary}
// @Failure 409 {object} util.Response
// @Router /reconcile [post]
func (c *ReconcileController) Run(ctx *gin.Context) {
	var opts service.ReconcileOptions
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&opts); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	operator := ""
	if user := util.GetUserFromContext(ctx); user != nil {
		operator = user.Subject
	}
	logger.Log.Info("reconcile requested", zap.String("operator", operator), zap.Bool("dryRun", opts.DryRun))

	summary, err := c.Reconciler.Run(ctx.Request.Context(), opts)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary Cross-collection consistency check
// @Tags reconcile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /consistency [get]
func (c *ReconcileController) Check(ctx *gin.Context) {
	report, err := c.Consistency.Check(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"consistent": report.Consistent(), "report": report})
}

// @Summary Recent runs from the ledger
// @Tags reconcile
// @Produce json
// @Security BearerAuth
// @Param command query string false "filter by command"
// @Param limit query int false "number of runs" default(20)
// @Success 200 {object} util.Response{data=util.ListResponse}
// @Failure 503 {object} util.Response
// @Router /runs [get]
func (c *ReconcileController) Runs(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	runs, err := c.Ledger.Recent(ctx.Query("command"), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.ListResponse{List: runs, Total: len(runs)})
}
