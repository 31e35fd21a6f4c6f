package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusSource is the view of the dispatcher the admin endpoints report on.
type StatusSource interface {
	Topics() []string
	Running() bool
	Err() error
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type subscriptionsResponse struct {
	Topics []string `json:"topics"`
	Count  int      `json:"count"`
}

func WithStatus(src StatusSource) Option {
	return WithRoutes(func(r gin.IRouter) {
		RegisterStatusRoutes(r, src)
	})
}

func RegisterStatusRoutes(r gin.IRouter, src StatusSource) {
	r.GET("/healthcheck", healthcheck(src))
	r.GET("/subscriptions", subscriptions(src))
}

func healthcheck(src StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if src.Running() {
			c.JSON(http.StatusOK, healthResponse{Status: "ok"})
			return
		}
		resp := healthResponse{Status: "unavailable"}
		if err := src.Err(); err != nil {
			resp.Error = err.Error()
		}
		c.JSON(http.StatusServiceUnavailable, resp)
	}
}

func subscriptions(src StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		topics := src.Topics()
		if topics == nil {
			topics = []string{}
		}
		c.JSON(http.StatusOK, subscriptionsResponse{Topics: topics, Count: len(topics)})
	}
}
