// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

type statusResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// statusRoutes registers the liveness and readiness routes under the /-/ prefix.
func statusRoutes(app *fiber.App, name, version string) {
	handler := func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(statusResponse{
			Name:    name,
			Version: version,
			Status:  "OK",
		})
	}

	group := app.Group("/-")
	group.Get("/healthz", handler)
	group.Get("/ready", handler)
	group.Get("/check-up", handler)
}
