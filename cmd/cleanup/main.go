// Copyright 2026 The AuthCore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// One-shot sweep of expired role assignments, intended for external
// schedulers (Kubernetes CronJob, systemd timer). Tenants are given as
// arguments or via AUTHZ_SWEEP_TENANTS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/elementmedica/authcore/internal/audit"
	"github.com/elementmedica/authcore/internal/authz"
	"github.com/elementmedica/authcore/internal/config"
	"github.com/elementmedica/authcore/internal/observability/logger"
	"github.com/elementmedica/authcore/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	tenants := os.Args[1:]
	if len(tenants) == 0 {
		tenants = cfg.Authz.SweepTenants
	}
	if len(tenants) == 0 {
		fmt.Fprintln(os.Stderr, "no tenants given: pass tenant IDs as arguments or set AUTHZ_SWEEP_TENANTS")
		os.Exit(2)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	engine := authz.NewEngine(postgres.NewRoleStore(db), audit.NewSlogEmitter())

	exitCode := 0
	for _, tenantID := range tenants {
		count, err := engine.CleanupExpiredRoles(ctx, tenantID)
		if err != nil {
			slog.Error("sweep failed", logger.TenantID(tenantID), logger.Error(err))
			exitCode = 1
			continue
		}
		fmt.Printf("tenant %s: deactivated %d expired assignments\n", tenantID, count)
	}
	os.Exit(exitCode)
}
