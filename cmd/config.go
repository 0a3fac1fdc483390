package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/jerry-enebeli/faxline/config"
	"github.com/spf13/cobra"
)

const redacted = "********"

// redact blanks the credentials in a copy of cfg.
func redact(cfg config.Configuration) config.Configuration {
	if cfg.Server.SecretKey != "" {
		cfg.Server.SecretKey = redacted
	}
	if cfg.Transport.ApiKey != "" {
		cfg.Transport.ApiKey = redacted
	}
	keys := make([]config.ApiKeyConfig, len(cfg.Server.ApiKeys))
	for i, k := range cfg.Server.ApiKeys {
		k.Key = redacted
		keys[i] = k
	}
	cfg.Server.ApiKeys = keys
	return cfg
}

func configCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "config outputs your instance's computed configuration with secrets redacted",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error getting config: %v\n", err)
			}

			data, err := json.MarshalIndent(redact(*cfg), "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	return cmd
}
