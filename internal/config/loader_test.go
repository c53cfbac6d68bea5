package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/nbaetl/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
				convey.So(cfg.Fetch.PerPage, convey.ShouldEqual, 100)
				convey.So(cfg.Mongo.Database, convey.ShouldEqual, "nba")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("NBAETL_ADDR", ":8080")
			_ = os.Setenv("NBAETL_API_KEY", "secret")
			_ = os.Setenv("NBAETL_WORKER_COUNT", "2")
			_ = os.Setenv("NBAETL_FETCH__PER_PAGE", "25")
			_ = os.Setenv("NBAETL_FETCH__PACING", "250ms")
			_ = os.Setenv("NBAETL_POSTGRES__MAX_CONNS", "9")
			_ = os.Setenv("NBAETL_MONGO__DATABASE", "stats")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.APIKey, convey.ShouldEqual, "secret")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.Fetch.PerPage, convey.ShouldEqual, 25)
				convey.So(cfg.Fetch.Pacing, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.Postgres.MaxConns, convey.ShouldEqual, 9)
				convey.So(cfg.Mongo.Database, convey.ShouldEqual, "stats")
			})

			convey.Convey("Then untouched nested keys keep their defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Fetch.MaxPlayers, convey.ShouldEqual, 200)
				convey.So(cfg.Mongo.URI, convey.ShouldEqual, "mongodb://localhost:27017")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
log_format: json
fetch:
  max_players: 50
  season: 2022
  error_cooldown: 2s
scrape:
  attempts: 5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv(config.EnvConfigFile, tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Fetch.MaxPlayers, convey.ShouldEqual, 50)
				convey.So(cfg.Fetch.Season, convey.ShouldEqual, 2022)
				convey.So(cfg.Fetch.ErrorCooldown, convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.Scrape.Attempts, convey.ShouldEqual, 5)
				convey.So(cfg.Fetch.PerPage, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
fetch:
  max_games: 40
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv(config.EnvConfigFile, tmpFile)
			_ = os.Setenv("NBAETL_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Fetch.MaxGames, convey.ShouldEqual, 40)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv(config.EnvConfigFile, tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv(config.EnvConfigFile, "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("NBAETL_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("NBAETL_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When per_page is zero", func() {
			_ = os.Setenv("NBAETL_FETCH__PER_PAGE", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation should reject it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "fetch.per_page")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		config.EnvConfigFile,
		"NBAETL_ADDR",
		"NBAETL_API_KEY",
		"NBAETL_QUEUE_SIZE",
		"NBAETL_WORKER_COUNT",
		"NBAETL_FETCH__PER_PAGE",
		"NBAETL_FETCH__PACING",
		"NBAETL_POSTGRES__MAX_CONNS",
		"NBAETL_MONGO__DATABASE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "nbaetl-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
