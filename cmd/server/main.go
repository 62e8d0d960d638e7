// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/vivek-rahagir07/mkv-convertor/internal/api"
	"github.com/vivek-rahagir07/mkv-convertor/internal/app"
	"github.com/vivek-rahagir07/mkv-convertor/internal/config"
	"github.com/vivek-rahagir07/mkv-convertor/internal/convert"
	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg"
	"github.com/vivek-rahagir07/mkv-convertor/internal/history"
	"github.com/vivek-rahagir07/mkv-convertor/internal/logger"
	"github.com/vivek-rahagir07/mkv-convertor/internal/loop"
	"github.com/vivek-rahagir07/mkv-convertor/internal/process"
	"github.com/vivek-rahagir07/mkv-convertor/internal/watch"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	watchDir := flag.String("watch", "", "Directory to watch for MKV files (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}

	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if *watchDir != "" {
		cfg.Watch.Dir = *watchDir
		cfg.Watch.Enabled = true
	}

	logger := logger.NewWithOptions("mkv-convertor", logger.Options{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.Format == "json",
	})

	validator, err := ffmpeg.NewValidator(cfg.FFmpeg.AllowInput, cfg.FFmpeg.BlockInput)
	if err != nil {
		log.Fatalf("Input rules: %v", err)
	}

	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:         cfg.FFmpeg.Path,
		MaxLogLines:    cfg.FFmpeg.LogLines,
		ValidatorInput: validator,
	})
	if err != nil {
		log.Fatalf("FFmpeg init: %v", err)
	}
	if !ff.Skills().CanRemux() {
		logger.Error("%s lacks the matroska demuxer or the mp4 muxer, conversions will fail", ff.Binary())
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Fatalf("History: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := loop.New(0)
	sampler := process.NewSysSampler()

	supervisor, err := convert.New(convert.Config{
		Binary:       ff.Binary(),
		Executor:     events,
		NewParser:    ff.NewParser,
		StaleTimeout: cfg.FFmpeg.StaleTimeout(),
		KillTimeout:  cfg.FFmpeg.KillTimeout(),
		Sampler:      sampler,
		Logger:       logger.Named("convert"),
	})
	if err != nil {
		log.Fatalf("Supervisor: %v", err)
	}

	hub := api.NewHub(logger.Named("events"))
	go hub.Run(ctx)

	service, err := app.New(app.Config{
		Converter:   supervisor,
		Executor:    events,
		Validator:   validator,
		History:     store,
		Sampler:     sampler,
		Broadcaster: hub,
		Logger:      logger.Named("app"),
	})
	if err != nil {
		log.Fatalf("Service: %v", err)
	}

	// The loop outlives ctx so the cancelled outcome is still applied on
	// shutdown.
	go events.Run(context.Background())
	defer events.Close()

	if cfg.Watch.Enabled && cfg.Watch.Dir != "" {
		w, err := watch.New(watch.Config{
			Dir:       cfg.Watch.Dir,
			Submitter: service,
			Validator: validator,
			Logger:    logger.Named("watch"),
		})
		if err != nil {
			log.Fatalf("Watch: %v", err)
		}
		if err := w.Start(ctx); err != nil {
			log.Fatalf("Watch: %v", err)
		}
		defer w.Stop()
	}

	handler := api.NewHandler(service, store, ff, hub)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())
	handler.Mount(r.Group("/api/v1"))

	srv := &http.Server{Addr: cfg.Server.Bind, Handler: r}

	go func() {
		<-ctx.Done()
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.FFmpeg.KillTimeout()+5*time.Second)
		if err := service.Shutdown(drainCtx); err != nil {
			logger.Error("conversion still running at shutdown: %v", err)
		}
		cancelDrain()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("MKV Convertor listening on %s", cfg.Server.Bind)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server: %v", err)
		os.Exit(1)
	}
}
