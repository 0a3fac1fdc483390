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
	"fmt"
	"log"
	"os"

	"github.com/jerry-enebeli/faxline"
	"github.com/jerry-enebeli/faxline/config"
	"github.com/jerry-enebeli/faxline/database"
	"github.com/jerry-enebeli/faxline/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Faxline is the CLI application, wrapping the root Cobra command.
type Faxline struct {
	cmd *cobra.Command
}

// faxlineInstance holds the engine and configuration shared by every command.
type faxlineInstance struct {
	faxline *faxline.Faxline
	cnf     *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the engine before any command runs.
func preRun(app *faxlineInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		f, err := setupFaxline(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.faxline = f
		app.cnf = cnf
		return nil
	}
}

// setupFaxline connects to the data source and builds the dispatch engine.
func setupFaxline(cfg *config.Configuration) (*faxline.Faxline, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	f, err := faxline.NewFaxline(db)
	if err != nil {
		return nil, fmt.Errorf("error creating faxline: %v", err)
	}
	return f, nil
}

// NewCLI sets up the root command and the server, workers, migrate and
// config subcommands.
func NewCLI() *Faxline {
	var configFile string
	f := &faxlineInstance{}

	var rootCmd = &cobra.Command{
		Use:   "faxline",
		Short: "Outbound fax dispatch engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./faxline.json", "Configuration file for faxline")
	rootCmd.PersistentPreRunE = preRun(f, &configFile)

	rootCmd.AddCommand(serverCommands(f))
	rootCmd.AddCommand(workerCommands(f))
	rootCmd.AddCommand(migrateCommands(f))
	rootCmd.AddCommand(configCommands())

	return &Faxline{cmd: rootCmd}
}

func (w Faxline) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
