// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const versionOutput = `ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers
built with gcc 13 (Debian 13.2.0-2)
configuration: --prefix=/usr --enable-gpl --enable-libx264
libavutil      58. 29.100 / 58. 29.100
libavcodec     60. 31.102 / 60. 31.102
libavformat    60. 16.100 / 60. 16.100
`

const formatsOutput = `File formats:
 D. = Demuxing supported
 .E = Muxing supported
 --
 D  matroska,webm   Matroska / WebM
  E matroska        Matroska
  E mp4             MP4 (MPEG-4 Part 14)
 DE mov,mp4,m4a,3gp,3g2,mj2 QuickTime / MOV
 DE flac            raw FLAC
`

func TestParseVersion(t *testing.T) {
	info := parseVersion([]byte(versionOutput))

	assert.Equal(t, "6.1.1", info.Version)
	assert.Equal(t, "gcc 13 (Debian 13.2.0-2)", info.Compiler)
	assert.Equal(t, "--prefix=/usr --enable-gpl --enable-libx264", info.Configuration)
	require.Len(t, info.Libraries, 3)
	assert.Equal(t, Library{Name: "libavutil", Compiled: "58. 29.100", Linked: "58. 29.100"}, info.Libraries[0])
}

func TestParseVersionWithoutPatch(t *testing.T) {
	info := parseVersion([]byte("ffmpeg version 7.0 Copyright"))
	assert.Equal(t, "7.0.0", info.Version)
}

func TestParseVersionUnknown(t *testing.T) {
	info := parseVersion([]byte("ffmpeg version N-112233-gdeadbeef"))
	assert.Empty(t, info.Version)
}

func TestParseFormats(t *testing.T) {
	s := Skills{}
	s.Formats = parseFormats([]byte(formatsOutput))

	assert.True(t, s.HasDemuxer("matroska"))
	assert.True(t, s.HasDemuxer("webm"))
	assert.True(t, s.HasMuxer("matroska"))
	assert.True(t, s.HasMuxer("mp4"))
	assert.True(t, s.HasDemuxer("mp4"))
	assert.False(t, s.HasMuxer("webm"))
	assert.True(t, s.CanRemux())
}

func TestParseFormatsColumns(t *testing.T) {
	tests := []struct {
		line    string
		demuxer bool
		muxer   bool
	}{
		{" D  matroska   Matroska", true, false},
		{"  E matroska   Matroska", false, true},
		{" DE matroska   Matroska", true, true},
		{" E  matroska   Matroska", false, false},
		{"    matroska   Matroska", false, false},
	}

	for _, tt := range tests {
		s := Skills{}
		s.Formats = parseFormats([]byte(tt.line + "\n"))
		assert.Equal(t, tt.demuxer, s.HasDemuxer("matroska"), "demuxer for %q", tt.line)
		assert.Equal(t, tt.muxer, s.HasMuxer("matroska"), "muxer for %q", tt.line)
	}
}

func TestCanRemuxWithoutMP4Muxer(t *testing.T) {
	s := Skills{}
	s.Formats = parseFormats([]byte(" D  matroska,webm   Matroska / WebM\n"))
	assert.False(t, s.CanRemux())
}
