package server

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"bptlab/config"
	"bptlab/record"
	"bptlab/store"
)

// NewApp builds the HTTP API over a tree store. Operation outcomes always
// return 200 with the result envelope, including misses, because the trace
// of a failed operation is still replayable; only tree-level problems map to
// HTTP error codes.
func NewApp(mgr *store.Manager, logger *zap.Logger) *fiber.App {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := fiber.New()
	api := app.Group("/api")

	api.Post("/trees", func(c *fiber.Ctx) error {
		body := struct {
			Name string `json:"name"`
		}{}
		if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		}

		meta, err := mgr.CreateTree(body.Name)
		if err != nil {
			return c.Status(storeErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}
		logger.Info("tree created over http", zap.String("name", meta.Name))
		return c.Status(http.StatusCreated).JSON(meta)
	})

	api.Get("/trees", func(c *fiber.Ctx) error {
		metas, err := mgr.ListTrees()
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if metas == nil {
			metas = []store.Metadata{}
		}
		return c.JSON(fiber.Map{"trees": metas})
	})

	api.Get("/trees/:name", func(c *fiber.Ctx) error {
		entry, err := mgr.GetTree(c.Params("name"))
		if err != nil {
			return c.Status(storeErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{
			"metadata": entry.Metadata,
			"tree":     entry.Tree,
		})
	})

	api.Delete("/trees/:name", func(c *fiber.Ctx) error {
		if err := mgr.DeleteTree(c.Params("name")); err != nil {
			return c.Status(storeErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"deleted": c.Params("name")})
	})

	api.Post("/trees/:name/clear", func(c *fiber.Ctx) error {
		if err := mgr.ClearTree(c.Params("name")); err != nil {
			return c.Status(storeErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"cleared": c.Params("name")})
	})

	api.Post("/trees/:name/search", func(c *fiber.Ctx) error {
		body := struct {
			Key record.CompositeKey `json:"key"`
		}{}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		}
		return respondResult(c, mgr.Search(c.Params("name"), body.Key))
	})

	api.Post("/trees/:name/insert", func(c *fiber.Ctx) error {
		body := struct {
			Key   record.CompositeKey `json:"key"`
			Value record.Record       `json:"value"`
		}{}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		}
		return respondResult(c, mgr.Insert(c.Params("name"), body.Key, body.Value))
	})

	api.Post("/trees/:name/update", func(c *fiber.Ctx) error {
		body := struct {
			Key   record.CompositeKey `json:"key"`
			Value record.Record       `json:"value"`
		}{}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		}
		return respondResult(c, mgr.Update(c.Params("name"), body.Key, body.Value))
	})

	api.Post("/trees/:name/delete", func(c *fiber.Ctx) error {
		body := struct {
			Key record.CompositeKey `json:"key"`
		}{}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		}
		return respondResult(c, mgr.Delete(c.Params("name"), body.Key))
	})

	api.Post("/trees/:name/range", func(c *fiber.Ctx) error {
		body := struct {
			Start record.CompositeKey `json:"start"`
			End   record.CompositeKey `json:"end"`
		}{}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		}
		return respondResult(c, mgr.RangeQuery(c.Params("name"), body.Start, body.End))
	})

	api.Post("/trees/:name/bulk-load", func(c *fiber.Ctx) error {
		body := struct {
			Count int   `json:"count"`
			Seed  int64 `json:"seed"`
		}{}
		if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		}
		count := body.Count
		if count == 0 {
			count = defaultBulkCount
		}
		seed := body.Seed
		if seed == 0 {
			seed = nowUnixNano()
		}
		return respondResult(c, mgr.BulkLoad(c.Params("name"), count, seed))
	})

	api.Get("/trees/:name/wal", func(c *fiber.Ctx) error {
		entry, err := mgr.GetTree(c.Params("name"))
		if err != nil {
			return c.Status(storeErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}
		limit := c.QueryInt("limit", 0)
		return c.JSON(fiber.Map{
			"nextLSN": entry.WAL.NextLSN,
			"entries": entry.WAL.Tail(limit),
		})
	})

	api.Get("/trees/:name/cache", func(c *fiber.Ctx) error {
		entry, err := mgr.GetTree(c.Params("name"))
		if err != nil {
			return c.Status(storeErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(entry.Cache.Stats())
	})

	api.Get("/current-tree", func(c *fiber.Ctx) error {
		name, err := mgr.CurrentTree()
		if err != nil {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"name": name})
	})

	api.Put("/current-tree", func(c *fiber.Ctx) error {
		body := struct {
			Name string `json:"name"`
		}{}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		}
		if err := mgr.SetCurrentTree(body.Name); err != nil {
			return c.Status(storeErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"name": body.Name})
	})

	return app
}

// Run serves the API on the configured address until the listener fails.
func Run(cfg *config.Config, mgr *store.Manager, logger *zap.Logger) error {
	app := NewApp(mgr, logger)
	logger.Info("serving http api", zap.String("addr", cfg.Server.Addr))
	return app.Listen(cfg.Server.Addr)
}

func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrTreeNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrTreeExists), errors.Is(err, store.ErrCapacityExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
