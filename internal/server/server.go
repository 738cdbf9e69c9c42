// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/feedagg/internal/info"
	"github.com/mia-platform/feedagg/internal/logger"
)

const (
	serviceName = "feedagg"
	loggerName  = "feedagg:server"
)

// Handler processes a request body and returns the value to encode as the JSON response.
// A nil value produces an empty 204 response.
type Handler func(ctx context.Context, body []byte) (any, error)

type Server interface {
	AddRoute(method string, path string, handler Handler)
	Start() error
	Stop() error
	StartAsync(ctx context.Context)
}

type impServer struct {
	config

	app *fiber.App
}

var (
	ErrServerListen   = errors.New("server listen error")
	ErrServerShutdown = errors.New("server shutdown error")
	// ErrBadRequest marks handler errors caused by the request content, answered with a 400.
	ErrBadRequest = errors.New("bad request")
)

func NewServer(ctx context.Context) (Server, error) {
	cfg, err := LoadServerConfig()
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: cfg.DisableStartupMessage,
		BodyLimit:             cfg.BodyLimit,
		// request bodies outlive the handler in the goroutines spawned by readers
		Immutable: true,
	})
	log := logger.FromContext(ctx)
	app.Use(logger.RequestMiddlewareLogger(log, []string{"/-/"}))

	statusRoutes(app, serviceName, info.Version)

	return &impServer{
		app:    app,
		config: *cfg,
	}, nil
}

func (s *impServer) AddRoute(method string, path string, handler Handler) {
	s.app.Add(method, path, func(ctx *fiber.Ctx) error {
		result, err := handler(ctx.UserContext(), ctx.Body())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrBadRequest) {
				status = http.StatusBadRequest
			}
			return ctx.Status(status).JSON(fiber.Map{
				"statusCode": status,
				"error":      http.StatusText(status),
				"message":    err.Error(),
			})
		}

		if result == nil {
			return ctx.SendStatus(http.StatusNoContent)
		}
		return ctx.Status(http.StatusOK).JSON(result)
	})
}

func (s *impServer) Start() error {
	if err := s.app.Listen(fmt.Sprintf("%s:%d", s.HTTPHost, s.HTTPPort)); err != nil {
		return fmt.Errorf("%w: %w", ErrServerListen, err)
	}
	return nil
}

func (s *impServer) Stop() error {
	if err := s.app.Shutdown(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerShutdown, err)
	}
	return nil
}

func (s *impServer) StartAsync(ctx context.Context) {
	log := logger.FromContext(ctx).WithName(loggerName)
	go func() {
		if err := s.Start(); err != nil {
			log.Error(err.Error())
		}
	}()
}
