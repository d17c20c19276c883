package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/bookmatch/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
				convey.So(cfg.Matching.ConfidenceThreshold, convey.ShouldEqual, 0.7)
				convey.So(cfg.Matching.MaxSearchResults, convey.ShouldEqual, 5)
				convey.So(cfg.Matching.TitleAuthorEnabled, convey.ShouldBeTrue)
				convey.So(cfg.Cache.Backend, convey.ShouldEqual, config.CacheMemory)
				convey.So(cfg.Scoring.Identity.TitleWeight, convey.ShouldEqual, 0.35)
				convey.So(cfg.Scoring.Edition.FormatCrossDigital, convey.ShouldEqual, 62.5)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BOOKMATCH_ADDR", ":8080")
			_ = os.Setenv("BOOKMATCH_WORKER_COUNT", "16")
			_ = os.Setenv("BOOKMATCH_MATCHING__CONFIDENCE_THRESHOLD", "0.85")
			_ = os.Setenv("BOOKMATCH_MATCHING__TITLE_AUTHOR_ENABLED", "false")
			_ = os.Setenv("BOOKMATCH_CATALOG__BASE_URL", "https://catalog.example")
			_ = os.Setenv("BOOKMATCH_SCORING__IDENTITY__HIGH_CONFIDENCE", "80")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then nested keys override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.Matching.ConfidenceThreshold, convey.ShouldEqual, 0.85)
				convey.So(cfg.Matching.TitleAuthorEnabled, convey.ShouldBeFalse)
				convey.So(cfg.Catalog.BaseURL, convey.ShouldEqual, "https://catalog.example")
				convey.So(cfg.Scoring.Identity.HighConfidence, convey.ShouldEqual, 80.0)
				convey.So(cfg.Scoring.Identity.MediumConfidence, convey.ShouldEqual, 60.0)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
queue_size: 50
matching:
  max_search_results: 10
cache:
  backend: sqlite
  dsn: /tmp/bookmatch-test.db
scoring:
  edition:
    alternatives: 1
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("BOOKMATCH_CONFIG", tmpFile)
			_ = os.Setenv("BOOKMATCH_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 50)
				convey.So(cfg.Matching.MaxSearchResults, convey.ShouldEqual, 10)
				convey.So(cfg.Cache.Backend, convey.ShouldEqual, config.CacheSQLite)
				convey.So(cfg.Scoring.Edition.Alternatives, convey.ShouldEqual, 1)
				convey.So(cfg.Scoring.Edition.FormatWeight, convey.ShouldEqual, 0.40)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("BOOKMATCH_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a numeric env var is malformed", func() {
			_ = os.Setenv("BOOKMATCH_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When values are out of range", func() {
			for key, value := range map[string]string{
				"BOOKMATCH_ADDR":                           "",
				"BOOKMATCH_WORKER_COUNT":                   "0",
				"BOOKMATCH_MATCHING__CONFIDENCE_THRESHOLD": "1.5",
				"BOOKMATCH_MATCHING__MAX_SEARCH_RESULTS":   "-1",
				"BOOKMATCH_CACHE__BACKEND":                 "redis",
				"BOOKMATCH_LOG_FORMAT":                     "xml",
				"BOOKMATCH_CATALOG__REQUESTS_PER_SECOND":   "0",
			} {
				clearConfigEnvVars()
				_ = os.Setenv(key, value)
				_, err := config.Load(ctx)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
			clearConfigEnvVars()
		})
	})
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "bookmatch-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "BOOKMATCH_") {
			_ = os.Unsetenv(key)
		}
	}
}
