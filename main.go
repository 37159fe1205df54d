// @title CodeQuest admin API
// @version 1.0
// @description Catalog validation, achievement reconciliation and leaderboard maintenance for CodeQuest.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"codequest_admin/internal/app"
	"os"
)

func main() {
	os.Exit(app.Execute())
}
