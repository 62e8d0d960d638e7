// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator decides whether a path may be handed to FFmpeg
type Validator interface {
	IsValid(path string) bool
}

type pathValidator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator creates a Validator from allow and block expressions. Blank
// expressions are ignored; with no allow expressions everything not blocked
// is valid.
func NewValidator(allow, block []string) (Validator, error) {
	var err error
	v := &pathValidator{}

	if v.allow, err = compileAll("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compileAll("block", block); err != nil {
		return nil, err
	}

	return v, nil
}

func compileAll(kind string, exps []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, exp := range exps {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func (v *pathValidator) IsValid(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	if matchAny(v.block, path) {
		return false
	}
	return len(v.allow) == 0 || matchAny(v.allow, path)
}
