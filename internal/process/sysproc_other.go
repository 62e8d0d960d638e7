// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

//go:build !windows

package process

import "os/exec"

func hideWindow(cmd *exec.Cmd) {}
