// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package api

// ConvertRequest for POST /convert. An empty output is derived from input.
type ConvertRequest struct {
	Input  string `json:"input" binding:"required"`
	Output string `json:"output"`
}

// ActivityEntry is one line of the activity log
type ActivityEntry struct {
	Time    int64  `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
	Line    string `json:"line"`
}

// Format is a container format known to FFmpeg
type Format struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FFmpegResponse describes the FFmpeg binary in use
type FFmpegResponse struct {
	Binary        string          `json:"binary"`
	Version       string          `json:"version"`
	Compiler      string          `json:"compiler"`
	Configuration string          `json:"configuration"`
	Libraries     []FFmpegLibrary `json:"libraries"`
	CanRemux      bool            `json:"can_remux"`
	Demuxers      []Format        `json:"demuxers"`
	Muxers        []Format        `json:"muxers"`
}

// FFmpegLibrary is a linked av library
type FFmpegLibrary struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
