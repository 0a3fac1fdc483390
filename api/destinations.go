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
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	model2 "github.com/jerry-enebeli/faxline/api/model"
	"github.com/jerry-enebeli/faxline/model"
)

// ListDestinations returns the registry, or only one category when the
// category query parameter is set.
func (a Api) ListDestinations(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		c.JSON(http.StatusOK, a.faxline.Registry().All())
		return
	}

	c.JSON(http.StatusOK, a.faxline.Registry().ListByCategory(model.Type(category)))
}

func (a Api) GetDestination(c *gin.Context) {
	destination, err := a.faxline.Registry().Get(c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, destination)
}

// SearchDestinations matches free text against destination names and keys.
// An empty list is a valid answer.
func (a Api) SearchDestinations(c *gin.Context) {
	var query model2.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}
	if err := query.ValidateSearchQuery(); err != nil {
		invalidInput(c, err)
		return
	}

	c.JSON(http.StatusOK, a.faxline.Registry().FindByText(query.Q))
}

// EstimateCost prices count faxes of the given page count against mailing
// the same documents.
func (a Api) EstimateCost(c *gin.Context) {
	var query model2.CostEstimateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}
	if err := query.ValidateCostEstimateQuery(); err != nil {
		invalidInput(c, err)
		return
	}

	c.JSON(http.StatusOK, a.faxline.Calculator().Estimate(query.Pages, query.Count))
}
