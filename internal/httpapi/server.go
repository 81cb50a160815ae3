// Package httpapi exposes crawlforge's external surface: submitting crawl
// requests through the dispatcher, checking job status, running the
// tool-dispatch engine directly, and invoking named workflows. It
// deliberately does not reimplement the teacher's tenancy/auth/admin
// surfaces — those are out of this core's scope.
package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crawlforge/internal/dispatch"
	"crawlforge/internal/jobs"
	"crawlforge/internal/metrics"
	"crawlforge/internal/model"
	"crawlforge/internal/toolbag"
	"crawlforge/internal/workflow"
)

// Server wires the dispatcher, job registry, toolbag, and workflow engine
// into a fiber app.
type Server struct {
	app *fiber.App
}

// Deps groups the components the HTTP surface routes into.
type Deps struct {
	Dispatch *dispatch.Dispatcher
	Jobs     jobs.Registry
	Toolbag  *toolbag.Engine
	Workflow *workflow.Engine
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// New builds a Server ready to Listen.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	app := fiber.New()

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		deps.Logger.Info("request",
			"request_id", reqID,
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")
	v1.Post("/crawl", handleCrawl(deps))
	v1.Post("/crawl/batch", handleCrawlBatch(deps))
	v1.Get("/jobs/:id", handleJobStatus(deps))
	v1.Post("/tools/execute", handleToolExecute(deps))
	v1.Post("/tools/execute_chain", handleToolExecuteChain(deps))
	v1.Post("/workflows/:name", handleWorkflow(deps))

	return &Server{app: app}
}

// Listen starts the server on addr (host:port).
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func handleCrawl(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req model.CrawlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.URL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
		}

		resp, err := deps.Dispatch.Dispatch(c.Context(), req)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(resp)
	}
}

func handleCrawlBatch(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			URLs []model.CrawlRequest `json:"urls"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if len(body.URLs) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "urls must be non-empty"})
		}

		resp, err := deps.Dispatch.DispatchBatch(c.Context(), body.URLs)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(resp)
	}
}

func handleJobStatus(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		job, ok, err := deps.Jobs.Get(c.Context(), id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
		}
		return c.JSON(job)
	}
}

type toolExecuteRequest struct {
	Tools          []string `json:"tools"`
	Query          string   `json:"query"`
	Provider       string   `json:"provider"`
	Model          string   `json:"model"`
	APIKey         string   `json:"apiKey"`
	PreviousResult string   `json:"previousResult"`
}

func handleToolExecute(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req toolExecuteRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := validateToolExecuteRequest(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		transcript, err := deps.Toolbag.Execute(c.Context(), req.Tools, req.Query, req.Provider, req.Model, req.APIKey, req.PreviousResult)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(transcript)
	}
}

func handleToolExecuteChain(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			toolExecuteRequest
			Mode string `json:"mode"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := validateToolExecuteRequest(req.toolExecuteRequest); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		result, err := deps.Toolbag.ExecuteChain(c.Context(), req.Tools, req.Query, toolbag.ChainMode(req.Mode), req.Provider, req.Model, req.APIKey)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(result)
	}
}

func handleWorkflow(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req toolExecuteRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.Provider == "" || req.APIKey == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "provider and apiKey are required"})
		}

		result, err := deps.Workflow.Run(c.Context(), c.Params("name"), req.Query, req.Provider, req.Model, req.APIKey)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(result)
	}
}

func validateToolExecuteRequest(req toolExecuteRequest) error {
	if len(req.Tools) == 0 {
		return errors.New("tools must be non-empty")
	}
	if req.Provider == "" {
		return errors.New("provider is required")
	}
	if req.APIKey == "" {
		return errors.New("apiKey is required")
	}
	if req.Query == "" {
		return fmt.Errorf("query is required")
	}
	return nil
}
