// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Format represents a supported container format
type Format struct {
	Id   string
	Name string
}

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

// Info 描述 FFmpeg 版本与编译信息
type Info struct {
	Version       string
	Compiler      string
	Configuration string
	Libraries     []Library
}

// Skills are the detected capabilities of FFmpeg that matter for remuxing
type Skills struct {
	FFmpeg  Info
	Formats struct {
		Demuxers []Format
		Muxers   []Format
	}
}

// New queries binary for its version and container formats
func New(binary string) (Skills, error) {
	c := Skills{}

	ff, err := getVersion(binary)
	if err != nil {
		return Skills{}, fmt.Errorf("can't parse ffmpeg version: %w", err)
	}
	if ff.Version == "" {
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}
	c.FFmpeg = ff
	c.Formats = getFormats(binary)

	return c, nil
}

// HasDemuxer reports whether FFmpeg can read the format id.
func (s Skills) HasDemuxer(id string) bool {
	return hasFormat(s.Formats.Demuxers, id)
}

// HasMuxer reports whether FFmpeg can write the format id.
func (s Skills) HasMuxer(id string) bool {
	return hasFormat(s.Formats.Muxers, id)
}

// CanRemux reports whether MKV can be stream-copied into MP4.
func (s Skills) CanRemux() bool {
	return s.HasDemuxer("matroska") && s.HasMuxer("mp4")
}

func hasFormat(formats []Format, id string) bool {
	for _, f := range formats {
		if f.Id == id {
			return true
		}
	}
	return false
}

func getVersion(binary string) (Info, error) {
	cmd := exec.Command(binary, "-version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Info{}, err
	}
	return parseVersion(out), nil
}

var (
	reVersion       = regexp.MustCompile(`^ffmpeg version n?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler      = regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary       = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
	reFormat        = regexp.MustCompile(`^\s([D ])([E ])[d ]? ([0-9A-Za-z_,]+)\s+(.*?)$`)
)

func parseVersion(data []byte) Info {
	f := Info{}

	if m := reVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		f.Compiler = strings.TrimSpace(string(m[1]))
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = strings.TrimSpace(string(m[1]))
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}

func getFormats(binary string) struct {
	Demuxers []Format
	Muxers   []Format
} {
	cmd := exec.Command(binary, "-hide_banner", "-formats")
	stdout, _ := cmd.Output()
	return parseFormats(stdout)
}

func parseFormats(data []byte) struct {
	Demuxers []Format
	Muxers   []Format
} {
	f := struct {
		Demuxers []Format
		Muxers   []Format
	}{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reFormat.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		if m[1] == " " && m[2] == " " {
			continue
		}
		for _, id := range strings.Split(m[3], ",") {
			format := Format{Id: id, Name: m[4]}
			if m[1] == "D" {
				f.Demuxers = append(f.Demuxers, format)
			}
			if m[2] == "E" {
				f.Muxers = append(f.Muxers, format)
			}
		}
	}
	return f
}
