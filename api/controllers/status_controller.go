package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/gfpgan-client/status"
	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

// InfoFetcher reads the processing server's version and GPU.
type InfoFetcher interface {
	FetchInfo(ctx context.Context) (*types.InfoResponse, error)
}

type StatusController struct {
	channel *status.Channel
	info    InfoFetcher
}

func NewStatusController(ch *status.Channel, info InfoFetcher) *StatusController {
	return &StatusController{channel: ch, info: info}
}

// HandleStatus returns the stream state and the latest event per category.
func (ctrl *StatusController) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.channel.Snapshot()))
}

// HandleReconnect is the user's reconnect intent.
func (ctrl *StatusController) HandleReconnect(c *gin.Context) {
	ctrl.channel.Start()
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.channel.State()))
}

func (ctrl *StatusController) HandleStop(c *gin.Context) {
	ctrl.channel.Stop()
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.channel.State()))
}

// HandleInfo proxies the server info. Half precision is on whenever a GPU is used.
func (ctrl *StatusController) HandleInfo(c *gin.Context) {
	info, err := ctrl.info.FetchInfo(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":       err.Error(),
			"app_version": "N/A",
			"gpu_name":    "Error",
		})
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(gin.H{
		"app_version":    info.AppVersion,
		"gpu_name":       info.GPUName,
		"half_precision": !strings.EqualFold(info.GPUName, "cpu"),
	}))
}
