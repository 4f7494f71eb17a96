// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tomtom215/tutela/internal/config"
)

const (
	// DefaultMariaDBImage matches the database image the guarded stacks
	// typically ship with.
	DefaultMariaDBImage = "mariadb:11.4"

	// DefaultMariaDBPort is the server port inside the container.
	DefaultMariaDBPort = "3306"

	// Test credentials baked into the container environment.
	DefaultRootPassword = "tutela-test-root"
	DefaultDatabase     = "wordpress"
)

// MariaDBContainer represents a running MariaDB server for testing.
type MariaDBContainer struct {
	testcontainers.Container
	Host     string
	Port     int
	Password string
	Database string
}

// MariaDBOption configures the MariaDB container.
type MariaDBOption func(*mariadbConfig)

type mariadbConfig struct {
	image        string
	database     string
	startTimeout time.Duration
}

// WithMariaDBImage sets a custom MariaDB Docker image.
func WithMariaDBImage(image string) MariaDBOption {
	return func(c *mariadbConfig) {
		c.image = image
	}
}

// WithDatabase sets the database created on container startup.
func WithDatabase(name string) MariaDBOption {
	return func(c *mariadbConfig) {
		c.database = name
	}
}

// WithMariaDBStartTimeout sets the startup wait timeout.
func WithMariaDBStartTimeout(timeout time.Duration) MariaDBOption {
	return func(c *mariadbConfig) {
		c.startTimeout = timeout
	}
}

// NewMariaDBContainer creates and starts a MariaDB container.
//
// The container only waits for the listening port; callers gate on
// actual readiness through the database client's WaitReady, which is
// the same path production runs take.
func NewMariaDBContainer(ctx context.Context, opts ...MariaDBOption) (*MariaDBContainer, error) {
	cfg := &mariadbConfig{
		image:        DefaultMariaDBImage,
		database:     DefaultDatabase,
		startTimeout: 120 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMariaDBPort + "/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": DefaultRootPassword,
			"MARIADB_DATABASE":      cfg.database,
		},
		WaitingFor: wait.ForListeningPort(DefaultMariaDBPort + "/tcp").
			WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create mariadb container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultMariaDBPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MariaDBContainer{
		Container: container,
		Host:      host,
		Port:      port.Int(),
		Password:  DefaultRootPassword,
		Database:  cfg.database,
	}, nil
}

// DatabaseConfig returns a client configuration pointed at the container.
func (c *MariaDBContainer) DatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:         c.Host,
		Port:         c.Port,
		User:         "root",
		Password:     c.Password,
		Name:         c.Database,
		WaitTimeout:  90 * time.Second,
		ClientBinary: "mysql",
		DumpBinary:   "mysqldump",
	}
}

// Terminate stops and removes the container.
func (c *MariaDBContainer) Terminate(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}
