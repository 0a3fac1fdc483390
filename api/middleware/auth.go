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

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/faxline/config"
	"github.com/sirupsen/logrus"
)

const (
	KeyHeader = "X-Faxline-Key"
	// CarrierKeyHeader authenticates delivery receipts posted by the carrier.
	CarrierKeyHeader = "X-Carrier-Key"

	carrierReceiptPath = "/webhooks/transport"
)

// Authenticate checks the X-Faxline-Key header against the secret key and the
// configured scoped API keys. Carrier receipts are checked against the
// transport API key instead. Nothing is checked when secure mode is off.
//
// Responses:
// - 401 Unauthorized: When the key is missing or unknown.
// - 403 Forbidden: When a scoped key lacks permission for the route.
func Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/" {
			c.Next()
			return
		}

		conf, err := config.Fetch()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "configuration not loaded"})
			return
		}
		if !conf.Server.Secure {
			c.Next()
			return
		}

		if c.Request.URL.Path == carrierReceiptPath {
			authenticateCarrier(c, conf)
			return
		}

		key := extractKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required. Use X-Faxline-Key header"})
			return
		}

		if conf.Server.SecretKey != "" && secureCompare(conf.Server.SecretKey, key) {
			c.Set("isMasterKey", true)
			c.Next()
			return
		}

		apiKey, ok := findAPIKey(conf.Server.ApiKeys, key)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		need, ok := RequiredPermission(c.Request.Method, c.Request.URL.Path)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Route is not available to API keys"})
			return
		}

		if !Grants(apiKey.Scopes, need) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions for " + need.String()})
			return
		}

		logrus.WithFields(logrus.Fields{"api_key": apiKey.Name, "permission": need.String()}).Debug("api key authenticated")
		c.Set("apiKey", apiKey.Name)
		c.Next()
	}
}

func authenticateCarrier(c *gin.Context, conf *config.Configuration) {
	expected := conf.Transport.ApiKey
	given := c.GetHeader(CarrierKeyHeader)
	if expected == "" || given == "" || !secureCompare(expected, given) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid carrier key"})
		return
	}
	c.Next()
}

func findAPIKey(keys []config.ApiKeyConfig, key string) (config.ApiKeyConfig, bool) {
	for _, k := range keys {
		if k.Key != "" && secureCompare(k.Key, key) {
			return k, true
		}
	}
	return config.ApiKeyConfig{}, false
}

// extractKey retrieves the authentication key from the X-Faxline-Key header.
func extractKey(c *gin.Context) string {
	return c.GetHeader(KeyHeader)
}
