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
/*
Package main provides the CLI commands for managing database migrations in Faxline.
This includes commands for applying and rolling back migrations.
*/

package main

import (
	"fmt"
	"log"

	"github.com/jerry-enebeli/faxline"
	"github.com/jerry-enebeli/faxline/config"
	"github.com/jerry-enebeli/faxline/database"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

const migrationSchema = "faxline"

func migrateCommands(_ *faxlineInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "start faxline migration",
	}

	cmd.AddCommand(migrateUpCommands())
	cmd.AddCommand(migrateDownCommands())

	return cmd
}

// runMigrations applies the embedded migrations in direction and returns how
// many ran.
func runMigrations(direction migrate.MigrationDirection) (int, error) {
	migrations := migrate.EmbedFileSystemMigrationSource{
		FileSystem: faxline.SQLFiles,
		Root:       "sql",
	}

	cnf, err := config.Fetch()
	if err != nil {
		return 0, fmt.Errorf("error fetching config: %v", err)
	}

	db, err := database.ConnectDB(cnf.DataSource.Dns)
	if err != nil {
		return 0, fmt.Errorf("error connecting to database: %v", err)
	}
	defer db.Close()

	// the migrations table lives next to the fax tables
	migrate.SetSchema(migrationSchema)
	return migrate.Exec(db, "postgres", migrations, direction)
}

func migrateUpCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use: "up",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(migrate.Up)
			if err != nil {
				log.Printf("Error migrating up: %v", err)
				return
			}
			fmt.Printf("Applied %d migrations!\n", n)
		},
	}

	return cmd
}

func migrateDownCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use: "down",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(migrate.Down)
			if err != nil {
				log.Printf("Error migrating down: %v", err)
				return
			}
			fmt.Printf("Rolled back %d migrations!\n", n)
		},
	}

	return cmd
}
