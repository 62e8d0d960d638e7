// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package history

import "errors"

var (
	ErrNotFound     = errors.New("record not found")
	ErrRecordExists = errors.New("record already exists")
	ErrInvalidInput = errors.New("invalid record: need an input and an output")
)
