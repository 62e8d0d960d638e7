// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package api

import (
	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg/skills"
)

func skillsToAPI(binary string, s skills.Skills) FFmpegResponse {
	resp := FFmpegResponse{
		Binary:        binary,
		Version:       s.FFmpeg.Version,
		Compiler:      s.FFmpeg.Compiler,
		Configuration: s.FFmpeg.Configuration,
		CanRemux:      s.CanRemux(),
	}

	resp.Libraries = make([]FFmpegLibrary, len(s.FFmpeg.Libraries))
	for i, lib := range s.FFmpeg.Libraries {
		resp.Libraries[i] = FFmpegLibrary{Name: lib.Name, Compiled: lib.Compiled, Linked: lib.Linked}
	}

	resp.Demuxers = formatsToAPI(s.Formats.Demuxers)
	resp.Muxers = formatsToAPI(s.Formats.Muxers)

	return resp
}

func formatsToAPI(formats []skills.Format) []Format {
	out := make([]Format, len(formats))
	for i, f := range formats {
		out[i] = Format{ID: f.Id, Name: f.Name}
	}
	return out
}
