// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

// Command mkv2mp4 remuxes one MKV file into MP4 and shows its progress.
//
//	mkv2mp4 [-o out.mp4] [-ffmpeg path] in.mkv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vivek-rahagir07/mkv-convertor/internal/app"
	"github.com/vivek-rahagir07/mkv-convertor/internal/convert"
	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg"
	"github.com/vivek-rahagir07/mkv-convertor/internal/logger"
	"github.com/vivek-rahagir07/mkv-convertor/internal/loop"
)

func main() {
	os.Exit(run())
}

func run() int {
	output := flag.String("o", "", "Output file (default: input with .mp4 extension)")
	ffmpegBin := flag.String("ffmpeg", "ffmpeg", "FFmpeg binary path")
	stale := flag.Duration("stale", 0, "Stop ffmpeg after this long without output (0 disables)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] input.mkv\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	input := flag.Arg(0)
	if *output == "" {
		*output = app.DeriveOutput(input)
	}

	level := "error"
	if *verbose {
		level = "debug"
	}
	log := logger.NewWithOptions("mkv2mp4", logger.Options{Level: level})

	ff, err := ffmpeg.New(ffmpeg.Config{Binary: *ffmpegBin, SkipSkills: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	events := loop.New(0)
	supervisor, err := convert.New(convert.Config{
		Binary:       ff.Binary(),
		Executor:     events,
		NewParser:    ff.NewParser,
		StaleTimeout: *stale,
		Logger:       log,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, done := context.WithCancel(context.Background())
	defer done()

	go func() {
		select {
		case <-sigCtx.Done():
			supervisor.Cancel()
		case <-ctx.Done():
		}
	}()

	started := time.Now()
	var outcome convert.Outcome
	supervisor.Start(convert.Request{Input: input, Output: *output},
		func(percent int) {
			fmt.Fprintf(os.Stderr, "\rConverting... %3d%%", percent)
		},
		func(o convert.Outcome) {
			outcome = o
			done()
		},
	)

	events.Run(ctx)
	fmt.Fprintln(os.Stderr)

	if !outcome.OK() {
		fmt.Fprintf(os.Stderr, "Conversion failed: %s\n", outcome.Reason())
		return 1
	}
	fmt.Fprintf(os.Stderr, "Completed %s in %s\n", *output, time.Since(started).Round(time.Second))
	return 0
}
