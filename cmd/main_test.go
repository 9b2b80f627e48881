package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/adapters/http/api"
	app "github.com/komparedocers/autonomous-lead-qualification/internal/app"
	"github.com/komparedocers/autonomous-lead-qualification/internal/config"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("SIGNALD_ADDR", ":8080")
			_ = os.Setenv("SIGNALD_QUEUE_SIZE", "1000")
			_ = os.Setenv("SIGNALD_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("SIGNALD_ADDR")
				_ = os.Unsetenv("SIGNALD_QUEUE_SIZE")
				_ = os.Unsetenv("SIGNALD_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithWorkerCount(2),
					app.WithQueueSize(500),
					app.WithDedupeSize(1000),
					app.WithWindowDays(14, 60),
					app.WithMaintenanceInterval(30*time.Second),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing route registration", func() {
			convey.So(logger.Init(), convey.ShouldBeNil)
			svc := app.New(app.WithWorkerCount(1))
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()

			mux := http.NewServeMux()
			apiServer := api.NewServer(svc, svc)
			apiServer.Register(context.Background(), mux)

			convey.Convey("Then the mux resolves the business routes", func() {
				for _, path := range []string{"/healthz", "/stats", "/events", "/signals", "/calibration"} {
					req, err := http.NewRequest(http.MethodGet, path, nil)
					convey.So(err, convey.ShouldBeNil)
					_, pattern := mux.Handler(req)
					convey.So(pattern, convey.ShouldNotBeEmpty)
				}
			})
		})

		convey.Convey("When updating system metrics", func() {
			updateSystemMetrics()

			convey.Convey("Then the shared registry gathers without error", func() {
				_, err := metrics.GetRegistry().Gather()
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}
