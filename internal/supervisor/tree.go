// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package supervisor runs the scheduler daemon's long-lived services
// under a suture v4 supervision tree.
//
// The tree has two child layers so that a crashing admin server never
// takes the backup scheduler down with it, and vice versa:
//
//	root ("tutela")
//	├── scheduler-layer: IntervalRunnerService
//	└── admin-layer:     HTTPServerService
//
// Crashed services are restarted with exponential backoff. Supervisor
// events are logged through a sutureslog bridge into the process logger.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when the threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns production-ready defaults.
// These values match suture's built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree manages the supervised services of the tutela daemon.
type Tree struct {
	root      *suture.Supervisor
	scheduler *suture.Supervisor
	admin     *suture.Supervisor
	logger    *slog.Logger
	config    TreeConfig
}

// NewTree creates a supervision tree with the given configuration.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	// Apply defaults for zero values
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	// sutureslog's hook constructor has a pointer receiver, so the
	// handler must be addressable.
	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Child supervisors inherit the EventHook when added to the root.
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("tutela", rootSpec)
	scheduler := suture.New("scheduler-layer", childSpec)
	admin := suture.New("admin-layer", childSpec)

	root.Add(scheduler)
	root.Add(admin)

	return &Tree{
		root:      root,
		scheduler: scheduler,
		admin:     admin,
		logger:    logger,
		config:    config,
	}
}

// Root returns the root supervisor for direct access if needed.
func (t *Tree) Root() *suture.Supervisor {
	return t.root
}

// AddSchedulerService adds a service to the scheduler layer.
// Use this for the interval backup runner.
func (t *Tree) AddSchedulerService(svc suture.Service) suture.ServiceToken {
	return t.scheduler.Add(svc)
}

// AddAdminService adds a service to the admin layer.
// Use this for the admin HTTP server.
func (t *Tree) AddAdminService(svc suture.Service) suture.ServiceToken {
	return t.admin.Add(svc)
}

// Serve starts the supervision tree and blocks until the context is
// canceled. This is the main entry point for the daemon.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a background goroutine. The
// returned channel receives the error (or nil) when the tree stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport returns the services that failed to stop
// within the configured shutdown timeout. Useful when a shutdown hangs.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
