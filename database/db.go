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

package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/jerry-enebeli/faxline/config"

	_ "github.com/lib/pq"
)

// Declare a package-level variable to hold the singleton instance.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
	// compoundFilter is false on deployments without the scope index; window
	// queries then ignore the scope and callers filter the rows themselves.
	compoundFilter bool
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		compound := configuration.DataSource.CompoundFilter == nil || *configuration.DataSource.CompoundFilter
		instance = &Datasource{Conn: con, compoundFilter: compound}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// NewDatasource wraps an open connection, mainly for tests.
func NewDatasource(conn *sql.DB, compoundFilter bool) *Datasource {
	return &Datasource{Conn: conn, compoundFilter: compoundFilter}
}

// ConnectDB opens and pings the database. Tables are created by the migrate command.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	return db, nil
}
