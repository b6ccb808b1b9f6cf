// Command screensbot runs the demo bot.
package main

import (
	"cmp"
	"context"
	"log"
	"os"

	"github.com/m3rciful/tgscreens/core/bootstrap"
	"github.com/m3rciful/tgscreens/core/cmd"
	coreconfig "github.com/m3rciful/tgscreens/core/config"
	"github.com/m3rciful/tgscreens/demo"
)

func main() {
	demo.Register()

	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        loadConfig,
		Bootstrap:         setup,
	})
	if err != nil {
		log.Fatal(err)
	}
}

func loadConfig(path string) (cmd.ConfigCarrier, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg := carrier.CoreConfig()
	res, err := bootstrap.Run(context.Background(), bootstrap.Options{
		Config:        cfg,
		MigrationsDir: cmp.Or(os.Getenv("MIGRATIONS_DIR"), "migrations"),
	})
	if err != nil {
		return nil, err
	}
	app, err := demo.New(cfg, res.Backend, demo.Options{})
	if err != nil {
		return nil, err
	}
	return app.Bot, nil
}
