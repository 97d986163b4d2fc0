// Package web exposes the outward trigger interface: an ingest endpoint that
// accepts one device snapshot per call and runs the reconciliation pipeline
// on it.
package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"topomap/internal/snapshot"
	"topomap/internal/topology"
)

// Reconciler is the pipeline entry point the API dispatches to.
type Reconciler interface {
	Reconcile(ctx context.Context, snap *snapshot.Snapshot, dnsEnabled bool) error
}

// SetupRoutes registers the API routes on the fiber app.
func SetupRoutes(app *fiber.App, reconciler Reconciler, log zerolog.Logger) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// One call per successfully polled device per cycle. The dns query
	// parameter toggles reverse-lookup enrichment.
	app.Post("/api/v1/reconcile", func(c *fiber.Ctx) error {
		var snap snapshot.Snapshot
		if err := c.BodyParser(&snap); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid snapshot document",
			})
		}

		dnsEnabled := c.QueryBool("dns", true)
		err := reconciler.Reconcile(c.UserContext(), &snap, dnsEnabled)
		if err == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}

		if errors.Is(err, topology.ErrMalformedSnapshot) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		log.Error().Err(err).Str("host", snap.Misc.Host).Msg("reconcile failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "reconciliation failed",
		})
	})
}
