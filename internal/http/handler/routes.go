package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consdocs/internal/query"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers stay
// thin: parameter parsing and error translation only, with all query logic in
// the query service.
func RegisterRoutes(app *fiber.App, svc *query.Service, registry *prometheus.Registry) {
	app.Get("/health", Health())
	app.Get("/search/text", SearchText(svc))
	app.Get("/search/semantic", SearchSemantic(svc))
	app.Get("/search/tags", SearchTags(svc))
	app.Get("/browse/:system", Browse(svc))
	app.Get("/systems", Systems(svc))
	app.Get("/documents", Documents(svc))
	app.Get("/page/:id", GetPage(svc))

	if registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		))
	}
}

// Health is a liveness probe.
func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}
}

// SearchText handles GET /search/text?q=...&system=...&limit=...
func SearchText(svc *query.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := intQuery(c, "limit", 0)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}

		q := c.Query("q")
		results, err := svc.SearchText(c.UserContext(), q, c.Query("system"), limit)
		if err != nil {
			return mapQueryError(c, err)
		}
		return c.JSON(fiber.Map{
			"query":   q,
			"count":   len(results),
			"results": results,
		})
	}
}

// SearchSemantic handles GET /search/semantic?q=...&system=...&threshold=...&limit=...
func SearchSemantic(svc *query.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := intQuery(c, "limit", 0)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}

		threshold := query.DefaultSemanticThreshold
		if raw := c.Query("threshold"); raw != "" {
			threshold, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_THRESHOLD", "threshold must be a number")
			}
		}

		q := c.Query("q")
		results, err := svc.SearchSemantic(c.UserContext(), q, c.Query("system"), threshold, limit)
		if err != nil {
			return mapQueryError(c, err)
		}
		return c.JSON(fiber.Map{
			"query":     q,
			"threshold": threshold,
			"count":     len(results),
			"results":   results,
		})
	}
}

// SearchTags handles GET /search/tags?tags=a,b,c&system=...
func SearchTags(svc *query.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tags := strings.Split(c.Query("tags"), ",")

		pages, err := svc.SearchTags(c.UserContext(), tags, c.Query("system"))
		if err != nil {
			return mapQueryError(c, err)
		}
		return c.JSON(fiber.Map{
			"count":   len(pages),
			"results": pages,
		})
	}
}

// Browse handles GET /browse/:system?tag=...&page=...&per_page=...
func Browse(svc *query.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := intQuery(c, "page", 1)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		perPage, err := intQuery(c, "per_page", 0)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PER_PAGE", "invalid per_page")
		}

		result, err := svc.Browse(c.UserContext(), c.Params("system"), c.Query("tag"), page, perPage)
		if err != nil {
			return mapQueryError(c, err)
		}
		return c.JSON(result)
	}
}

// Systems handles GET /systems.
func Systems(svc *query.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summaries, err := svc.Systems(c.UserContext())
		if err != nil {
			return mapQueryError(c, err)
		}
		return c.JSON(fiber.Map{"systems": summaries})
	}
}

// Documents handles GET /documents?system=...
func Documents(svc *query.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := svc.Documents(c.UserContext(), c.Query("system"))
		if err != nil {
			return mapQueryError(c, err)
		}
		return c.JSON(fiber.Map{
			"count":     len(docs),
			"documents": docs,
		})
	}
}

// GetPage handles GET /page/:id.
func GetPage(svc *query.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		page, err := svc.GetPage(c.UserContext(), id)
		if err != nil {
			return mapQueryError(c, err)
		}
		return c.JSON(page)
	}
}

// intQuery parses an optional integer query parameter.
func intQuery(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
