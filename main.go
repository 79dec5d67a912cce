package main

import (
	"github.com/cppla/blogsvc/config"
	"github.com/cppla/blogsvc/models"
	"github.com/cppla/blogsvc/routes"
	"github.com/cppla/blogsvc/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.OpenDatabase(cfg, models.All()...)
	if err != nil {
		utils.Sugar.Fatalf("database: %v", err)
	}
	utils.Sugar.Infof("database connected driver=%s", cfg.DBDriver)

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
