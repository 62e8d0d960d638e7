// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package app

import "errors"

var (
	ErrBusy         = errors.New("a conversion is already running")
	ErrInvalidInput = errors.New("invalid input file: MKV required")
	ErrNotRunning   = errors.New("no conversion is running")
)
