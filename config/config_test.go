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

package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		ProjectName: "",
		DataSource: DataSourceConfig{
			Dns: "",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}

	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}
	cnf = Configuration{
		DataSource: DataSourceConfig{
			Dns: "postgres://localhost:5432",
		},
		Redis: RedisConfig{
			Dns: "",
		},
	}

	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "redis DNS is required" {
		t.Errorf("Expected redis DNS required error, got %v", err)
	}

	cnf = Configuration{
		ProjectName: "Test Project",
		DataSource: DataSourceConfig{
			Dns: "some-dns",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}
	if cnf.Dispatch.MaxRetries != 3 {
		t.Errorf("Expected 3 max retries, got %d", cnf.Dispatch.MaxRetries)
	}
	if cnf.DataSource.CompoundFilter == nil || !*cnf.DataSource.CompoundFilter {
		t.Errorf("Expected compound filtering to default on")
	}
	if cnf.Costs.PostageFirstPage != 1.55 || cnf.Costs.CarrierPerPage != 0.015 {
		t.Errorf("Expected default fee schedule, got %+v", cnf.Costs)
	}
	if cnf.Predictor.Weekend != 0.85 || cnf.Predictor.HistoryLimit != 100 {
		t.Errorf("Expected default predictor settings, got %+v", cnf.Predictor)
	}
	if cnf.Dispatch.LockTTLSec != 60 {
		t.Errorf("Expected lock TTL to cover two transport timeouts, got %d", cnf.Dispatch.LockTTLSec)
	}

	table := cnf.Dispatch.BackoffTable()
	expected := []time.Duration{15 * time.Minute, 60 * time.Minute, 240 * time.Minute}
	for i := range expected {
		if table[i] != expected[i] {
			t.Errorf("Expected backoff %s at %d, got %s", expected[i], i, table[i])
		}
	}
}

func TestBroadcastDelayFloor(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Dispatch:   DispatchConfig{BroadcastDelayMs: 200},
	}
	if err := cnf.validateAndAddDefaults(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cnf.Dispatch.BroadcastDelayMs != 1500 {
		t.Errorf("Expected broadcast delay to be raised to 1500ms, got %d", cnf.Dispatch.BroadcastDelayMs)
	}
}

func TestBackoffTableMustCoverRetries(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Dispatch:   DispatchConfig{MaxRetries: 4, BackoffMinutes: []int{1, 2}},
	}
	if err := cnf.validateAndAddDefaults(); err == nil {
		t.Errorf("Expected an error for a short backoff table")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "faxline.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource: DataSourceConfig{
			Dns: "temp-dns",
		},
		Redis: RedisConfig{
			Dns: "temp-redis",
		},
		Dispatch: DispatchConfig{
			BackoffMinutes: []int{1, 2, 3},
		},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	os.Setenv("FAXLINE_PROJECT_NAME", "Env Project")
	defer os.Unsetenv("FAXLINE_PROJECT_NAME")
	os.Setenv("FAXLINE_DISPATCH_MAX_RETRIES", "2")
	defer os.Unsetenv("FAXLINE_DISPATCH_MAX_RETRIES")

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if loadedConfig.ProjectName != "Env Project" {
		t.Errorf("Expected ProjectName to be 'Env Project', got '%s'", loadedConfig.ProjectName)
	}
	if loadedConfig.DataSource.Dns != "temp-dns" {
		t.Errorf("Expected DataSource.Dns to be 'temp-dns', got '%s'", loadedConfig.DataSource.Dns)
	}
	if loadedConfig.Dispatch.MaxRetries != 2 {
		t.Errorf("Expected MaxRetries from env to be 2, got %d", loadedConfig.Dispatch.MaxRetries)
	}
	if len(loadedConfig.Dispatch.BackoffMinutes) != 3 || loadedConfig.Dispatch.BackoffMinutes[0] != 1 {
		t.Errorf("Expected backoff minutes from file, got %v", loadedConfig.Dispatch.BackoffMinutes)
	}
}

func TestInitConfig(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "faxline.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "InitConfig Test",
		DataSource: DataSourceConfig{
			Dns: "init-config-dns",
		}, Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	if err := InitConfig(tmpFile.Name()); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if loadedConfig.ProjectName != "InitConfig Test" {
		t.Errorf("Expected ProjectName to be 'InitConfig Test', got '%s'", loadedConfig.ProjectName)
	}
	if loadedConfig.DataSource.Dns != "init-config-dns" {
		t.Errorf("Expected DataSource.Dns to be 'init-config-dns', got '%s'", loadedConfig.DataSource.Dns)
	}
}
