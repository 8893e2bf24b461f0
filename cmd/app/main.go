package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"FinFactor/internal/di"
	"FinFactor/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	checkOnly := flag.Bool("check", false, "validate the configuration and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *checkOnly {
		fmt.Printf("config ok: env=%s provider=%s port=%d kafka=%t result_store=%t\n",
			cfg.Environment, cfg.Provider.Type, cfg.Server.Port, cfg.Kafka.Enabled, cfg.ResultStore.Enabled)
		return
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	runErr := app.Run()
	cleanup()
	if runErr != nil {
		log.Printf("app error: %v", runErr)
		os.Exit(1)
	}
}
