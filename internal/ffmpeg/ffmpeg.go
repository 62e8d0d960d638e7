// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package ffmpeg

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg/parse"
	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg/skills"
)

// FFmpeg manages the FFmpeg binary and what it can do
type FFmpeg interface {
	Binary() string
	NewParser() *parse.Parser
	ValidateInput(address string) bool
	Skills() skills.Skills
	ReloadSkills() error
}

// Config for FFmpeg
type Config struct {
	Binary         string
	MaxLogLines    int
	ValidatorInput Validator
	// SkipSkills disables probing the binary at construction.
	SkipSkills bool
}

type ffmpeg struct {
	binary      string
	validatorIn Validator
	skills      skills.Skills
	logLines    int
	skillsLock  sync.RWMutex
}

// New creates FFmpeg
func New(config Config) (FFmpeg, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}

	f := &ffmpeg{
		binary:   binary,
		logLines: config.MaxLogLines,
	}

	if f.logLines <= 0 {
		f.logLines = 100
	}

	if config.ValidatorInput != nil {
		f.validatorIn = config.ValidatorInput
	} else {
		f.validatorIn, _ = NewValidator(nil, nil)
	}

	if !config.SkipSkills {
		s, err := skills.New(f.binary)
		if err != nil {
			return nil, fmt.Errorf("invalid ffmpeg: %w", err)
		}
		f.skills = s
	}

	return f, nil
}

// StreamCopyArgs returns the arguments that remux input into output without
// re-encoding, overwriting output if it exists.
func StreamCopyArgs(input, output string) []string {
	return []string{"-y", "-i", input, "-c", "copy", output}
}

func (f *ffmpeg) Binary() string {
	return f.binary
}

func (f *ffmpeg) NewParser() *parse.Parser {
	return parse.New(parse.Config{LogLines: f.logLines})
}

func (f *ffmpeg) ValidateInput(address string) bool {
	return f.validatorIn.IsValid(address)
}

func (f *ffmpeg) Skills() skills.Skills {
	f.skillsLock.RLock()
	defer f.skillsLock.RUnlock()
	return f.skills
}

func (f *ffmpeg) ReloadSkills() error {
	s, err := skills.New(f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = s
	f.skillsLock.Unlock()
	return nil
}
