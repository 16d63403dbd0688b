package main

import (
	"github.com/peerhaven/peerhaven/config"
	"github.com/peerhaven/peerhaven/models"
	"github.com/peerhaven/peerhaven/routes"
	"github.com/peerhaven/peerhaven/utils"
)

func main() {
	config.Load()
	cfg := config.Get()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync()

	db := config.InitDatabase(
		&models.User{},
		&models.AuthToken{},
		&models.Category{},
		&models.Post{},
		&models.Reply{},
		&models.Like{},
	)

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("listening on :%s", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server exited: %v", err)
	}
}
