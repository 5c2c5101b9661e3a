package main

import (
	"os"

	"github.com/bugfixes/go-bugfixes/logs"
	env "github.com/caarlos0/env/v8"
	ConfigBuilder "github.com/keloran/go-config"

	"github.com/tiago-py/bravo-health-flow-sub000/internal"
)

// ProjectConfig is the deployment environment: where to hand completed
// runs off to, where the shared run store lives, and the Railway port
// override.
type ProjectConfig struct {
	CheckoutEndpoint string `env:"CHECKOUT_ENDPOINT"`
	RedisAddr        string `env:"REDIS_ADDR"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	OnRailway        bool   `env:"ON_RAILWAY" envDefault:"false"`
	RailwayPort      string `env:"RAILWAY_PORT"`
}

func main() {
	if err := run(); err != nil {
		_ = logs.Errorf("service stopped: %v", err)
		os.Exit(1)
	}
}

func run() error {
	pc := ProjectConfig{}
	if err := env.Parse(&pc); err != nil {
		return logs.Errorf("failed to parse environment: %v", err)
	}

	cfg := ConfigBuilder.NewConfigNoVault()
	if err := cfg.Build(ConfigBuilder.Local, ConfigBuilder.Postgres); err != nil {
		return logs.Errorf("failed to build config: %v", err)
	}

	cfg.ProjectProperties = map[string]interface{}{
		"checkout_endpoint": pc.CheckoutEndpoint,
		"redis_addr":        pc.RedisAddr,
		"redis_password":    pc.RedisPassword,
		"on_railway":        pc.OnRailway,
		"railway_port":      pc.RailwayPort,
	}

	return internal.New(cfg).Start()
}
