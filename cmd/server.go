/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/faxline"
	"github.com/jerry-enebeli/faxline/api"
	"github.com/jerry-enebeli/faxline/config"
	trace "github.com/jerry-enebeli/faxline/internal/traces"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// certStoragePath is where CertMagic keeps issued certificates.
const certStoragePath = "certmagic"

/*
serveTLS starts an HTTPS server using CertMagic for automatic certificate management.
If no domain is specified, the server defaults to localhost.
*/
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: certStoragePath}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start HTTPS server: %v", err)
	}

	return nil
}

func initializeRouter(f *faxlineInstance) *gin.Engine {
	return api.NewAPI(f.faxline).Router()
}

func initializeTracing(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	shutdown, err := trace.SetupOTelSDK(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func initializeObservability(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}
	return initializeTracing(ctx, cfg.ProjectName)
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// startRecovery runs the stuck job processor next to the API when enabled.
func startRecovery(ctx context.Context, f *faxline.Faxline, cfg *config.Configuration) func() {
	if !cfg.Dispatch.EnableStuckJobRecovery {
		return func() {}
	}
	processor := faxline.NewStuckJobRecoveryProcessor(f)
	processor.Start(ctx)
	logrus.Info("stuck job recovery processor started")
	return processor.Stop
}

/*
serverCommands returns the Cobra command that starts the Faxline API server.
It sets up tracing and the stuck job recovery processor before serving.
*/
func serverCommands(f *faxlineInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start faxline server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			router := initializeRouter(f)

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			shutdown, err := initializeObservability(ctx, cfg)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			stopRecovery := startRecovery(ctx, f.faxline, cfg)
			defer stopRecovery()

			if err := startServer(router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
