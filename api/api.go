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
	"github.com/jerry-enebeli/faxline"
	"github.com/jerry-enebeli/faxline/api/middleware"
	"github.com/jerry-enebeli/faxline/config"
	"github.com/jerry-enebeli/faxline/internal/apierror"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	faxline *faxline.Faxline
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/faxes", a.SubmitFax)
	router.GET("/faxes", a.ListFaxes)
	router.GET("/faxes/:id", a.GetFax)
	router.GET("/faxes/:id/history", a.GetFaxHistory)
	router.POST("/faxes/:id/retry", a.RetryFax)
	router.POST("/faxes/:id/cancel", a.CancelFax)
	router.POST("/faxes/:id/resubmit", a.ResubmitFax)

	router.POST("/broadcasts", a.Broadcast)

	router.GET("/analytics", a.GetAnalytics)
	router.GET("/clients/:ref/savings", a.GetClientSavings)

	router.GET("/destinations", a.ListDestinations)
	router.GET("/destinations/search", a.SearchDestinations)
	router.GET("/destinations/:key", a.GetDestination)
	router.GET("/cost-estimate", a.EstimateCost)

	router.POST("/webhooks/transport", a.CarrierReceipt)

	router.POST("/admin/recover-stuck", a.RecoverStuckJobs)
	return a.router
}

func NewAPI(f *faxline.Faxline) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	r.Use(middleware.Authenticate())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{faxline: f, router: r}
}

// respondError writes err with the status its code maps to. Errors without a
// code are reported as internal failures without leaking their text.
func respondError(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	if status == http.StatusInternalServerError && apierror.CodeOf(err) == "" {
		c.JSON(status, apierror.NewAPIError(apierror.ErrInternalServer, "internal server error", err.Error()))
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": apierror.CodeOf(err)})
}

func invalidInput(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apierror.ErrValidation})
}
