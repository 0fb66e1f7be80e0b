package server

import (
	"context"
	"time"

	"feedrelay/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Pinger reports whether the destination store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusProvider reports the state of the feed workers
type StatusProvider interface {
	Status() []models.WorkerStatus
}

type ServerConfig struct {
	// Store checked by the health endpoint
	Store Pinger

	// Feed workers reported by the status endpoint
	Workers StatusProvider

	// Number of configured feeds
	Feeds int
}

type statusResponse struct {
	Feeds   int                   `json:"feeds"`
	Running int                   `json:"running"`
	Workers []models.WorkerStatus `json:"workers"`
}

// Returns a fiber.App exposing health, metrics and worker status for the relay
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Debug("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		if config.Store != nil {
			if err := config.Store.Ping(ctx); err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("Health check failed")
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/status", func(c *fiber.Ctx) error {
		response := statusResponse{Feeds: config.Feeds, Workers: []models.WorkerStatus{}}
		if config.Workers != nil {
			response.Workers = config.Workers.Status()
		}
		for _, w := range response.Workers {
			if w.Running {
				response.Running++
			}
		}
		return c.JSON(response)
	})

	return app
}
