// Copyright 2025 AxonFlow
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

// Command gateway serves the SPP GraphQL data hub. It routes each request
// to the production or development MySQL database by the request host.
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	SPP_PORT - HTTP server port (default: 3001)
//	SPP_PROD_DB_* / SPP_DEV_DB_* - tenant credential sets
//	SPP_JWT_SECRET - secret for issued credentials (required)
//	SPP_CONFIG_FILE - optional YAML overlay
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ddam2015/spp-app-data-hub/config"
	"github.com/ddam2015/spp-app-data-hub/gateway/app"
	"github.com/ddam2015/spp-app-data-hub/gateway/server"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// config.Load reads .env before the logger picks up SPP_LOG_LEVEL
	cfg, err := config.Load(ctx)
	log := logger.New(server.ServiceName)
	defer func() { _ = log.Sync() }()
	if err != nil {
		log.Error("", "", "Invalid configuration", map[string]interface{}{"error": err.Error()})
		return err
	}

	a, err := app.New(ctx, cfg, app.Options{Version: version, Logger: log})
	if err != nil {
		log.Error("", "", "Failed to initialise gateway", map[string]interface{}{"error": logger.SanitizeError(err)})
		return err
	}
	if err := a.Run(ctx); err != nil {
		log.Error("", "", "Server error", map[string]interface{}{"error": logger.SanitizeError(err)})
		return err
	}
	return nil
}
