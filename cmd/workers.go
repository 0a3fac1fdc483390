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

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jerry-enebeli/faxline"
	"github.com/jerry-enebeli/faxline/config"
	redis_db "github.com/jerry-enebeli/faxline/internal/redis-db"
)

// initializeQueues weights dispatch over webhook delivery.
func initializeQueues(cfg *config.Configuration) map[string]int {
	return map[string]int{
		cfg.Queue.DispatchQueue: 6,
		cfg.Queue.WebhookQueue:  3,
	}
}

func redisConnOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	opt, err := redisConnOpt(conf)
	if err != nil {
		return nil, err
	}

	return asynq.NewServer(opt, asynq.Config{
		Concurrency: conf.Queue.Concurrency,
		Queues:      queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logrus.WithFields(logrus.Fields{"type": task.Type()}).WithError(err).Error("task failed")
		}),
	}), nil
}

func initializeTaskHandlers(f *faxlineInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(faxline.TypeDispatch, f.faxline.ProcessDispatchTask)
	mux.HandleFunc(faxline.TypeWebhook, faxline.ProcessWebhook)
}

// workerCommands defines the "workers" command. Workers send scheduled and
// retried faxes and deliver webhooks; asynqmon is served next to them.
func workerCommands(f *faxlineInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start faxline workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			srv, err := initializeWorkerServer(conf, initializeQueues(conf))
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(f, mux)

			opt, err := redisConnOpt(conf)
			if err != nil {
				log.Fatal(err)
			}
			monitor := asynqmon.New(asynqmon.Options{
				RootPath:     "/monitoring",
				RedisConnOpt: opt,
			})

			var g errgroup.Group
			g.Go(func() error {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				return http.ListenAndServe(monitoringAddr, monitor)
			})
			g.Go(func() error {
				return srv.Run(mux)
			})
			if err := g.Wait(); err != nil {
				log.Fatalf("could not run workers: %v", err)
			}
		},
	}

	return cmd
}
