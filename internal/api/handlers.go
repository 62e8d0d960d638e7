// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vivek-rahagir07/mkv-convertor/internal/app"
	"github.com/vivek-rahagir07/mkv-convertor/internal/convert"
	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg"
	"github.com/vivek-rahagir07/mkv-convertor/internal/history"
)

// Service is the conversion service behind the handlers
type Service interface {
	Submit(ctx context.Context, input, output string) (app.Job, error)
	Cancel() error
	Snapshot() app.Board
	Activity() []app.Entry
}

// Handler holds dependencies
type Handler struct {
	service Service
	history history.Store
	ffmpeg  ffmpeg.FFmpeg
	hub     *Hub
}

// NewHandler creates API handler. history, ff and hub may be nil, their
// routes then answer 404.
func NewHandler(service Service, store history.Store, ff ffmpeg.FFmpeg, hub *Hub) *Handler {
	return &Handler{service: service, history: store, ffmpeg: ff, hub: hub}
}

// Mount registers the routes on g
func (h *Handler) Mount(g gin.IRoutes) {
	g.POST("/convert", h.Convert)
	g.POST("/convert/cancel", h.Cancel)
	g.GET("/status", h.Status)
	g.GET("/activity", h.Activity)
	g.GET("/history", h.ListHistory)
	g.GET("/history/:id", h.GetHistory)
	g.GET("/ffmpeg", h.FFmpeg)
	g.POST("/ffmpeg/reload", h.ReloadFFmpeg)
	g.GET("/events", h.Events)
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// Convert POST /api/v1/convert
func (h *Handler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	job, err := h.service.Submit(c.Request.Context(), req.Input, req.Output)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrBusy):
			errResp(c, http.StatusConflict, "Conversion running", err.Error())
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, convert.ErrInvalidConfiguration):
			errResp(c, http.StatusBadRequest, "Invalid input", err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			errResp(c, http.StatusServiceUnavailable, "Not accepted", err.Error())
		default:
			errResp(c, http.StatusInternalServerError, "Conversion failed", err.Error())
		}
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// Cancel POST /api/v1/convert/cancel
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(); err != nil {
		errResp(c, http.StatusConflict, "Nothing to cancel", err.Error())
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// Status GET /api/v1/status
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Snapshot())
}

// Activity GET /api/v1/activity
func (h *Handler) Activity(c *gin.Context) {
	entries := h.service.Activity()
	out := make([]ActivityEntry, len(entries))
	for i, e := range entries {
		out[i] = ActivityEntry{
			Time:    e.Time.Unix(),
			Level:   string(e.Level),
			Message: e.Message,
			Line:    e.String(),
		}
	}
	c.JSON(http.StatusOK, out)
}

// ListHistory GET /api/v1/history?limit=N
func (h *Handler) ListHistory(c *gin.Context) {
	if h.history == nil {
		errResp(c, http.StatusNotFound, "History disabled", "")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		errResp(c, http.StatusBadRequest, "Invalid limit", c.Query("limit"))
		return
	}

	records, err := h.history.List(limit)
	if err != nil {
		errResp(c, http.StatusInternalServerError, "History unavailable", err.Error())
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	c.JSON(http.StatusOK, records)
}

// GetHistory GET /api/v1/history/:id
func (h *Handler) GetHistory(c *gin.Context) {
	if h.history == nil {
		errResp(c, http.StatusNotFound, "History disabled", "")
		return
	}

	r, err := h.history.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			errResp(c, http.StatusNotFound, "Unknown conversion ID", err.Error())
			return
		}
		errResp(c, http.StatusInternalServerError, "History unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, r)
}

// FFmpeg GET /api/v1/ffmpeg
func (h *Handler) FFmpeg(c *gin.Context) {
	if h.ffmpeg == nil {
		errResp(c, http.StatusNotFound, "FFmpeg unknown", "")
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Binary(), h.ffmpeg.Skills()))
}

// ReloadFFmpeg POST /api/v1/ffmpeg/reload
func (h *Handler) ReloadFFmpeg(c *gin.Context) {
	if h.ffmpeg == nil {
		errResp(c, http.StatusNotFound, "FFmpeg unknown", "")
		return
	}
	if err := h.ffmpeg.ReloadSkills(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Binary(), h.ffmpeg.Skills()))
}

// Events GET /api/v1/events (WebSocket)
func (h *Handler) Events(c *gin.Context) {
	if h.hub == nil {
		errResp(c, http.StatusNotFound, "Events disabled", "")
		return
	}
	h.hub.ServeWs(c.Writer, c.Request)
}
