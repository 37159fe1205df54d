package controller

import (
	"codequest_admin/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors to HTTP statuses and logs anything
// unexpected.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrUserNotFound), errors.Is(err, util.ErrMissionNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrUnknownMigration):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrReconcileInProcess):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrLedgerDisabled):
		util.Error(ctx, http.StatusServiceUnavailable, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
