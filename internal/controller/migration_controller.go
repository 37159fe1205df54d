package controller

import (
	"codequest_admin/internal/service"
	"codequest_admin/internal/util"

	"github.com/gin-gonic/gin"
)

type MigrationController struct {
	Runner *service.MigrationRunner
}

func NewMigrationController(runner *service.MigrationRunner) *MigrationController {
	return &MigrationController{Runner: runner}
}

type migrationInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Collection  string `json:"collection"`
}

// @Summary List migrations
// @Tags migrations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=util.ListResponse}
// @Router /migrations [get]
func (c *MigrationController) List(ctx *gin.Context) {
	migrations := c.Runner.List()
	out := make([]migrationInfo, 0, len(migrations))
	for _, m := range migrations {
		out = append(out, migrationInfo{Name: m.Name, Description: m.Description, Collection: m.Collection})
	}
	util.Success(ctx, util.ListResponse{List: out, Total: len(out)})
}

// @Summary Run a migration
// @Tags migrations
// @Produce json
// @Security BearerAuth
// @Param name path string true "migration name"
// @Param dryRun query bool false "count changes without writing"
// @Success 200 {object} util.Response{data=service.MigrationReport}
// @Failure 404 {object} util.Response
// @Router /migrations/{name} [post]
func (c *MigrationController) Run(ctx *gin.Context) {
	dryRun := ctx.Query("dryRun") == "true"
	report, err := c.Runner.Run(ctx.Request.Context(), ctx.Param("name"), dryRun)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
