// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package process

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess stands in for ffmpeg when run as a child of the tests.
//
//	emit <code> <line>...   write lines to stderr, exit with code
//	cr <line>...            write lines separated by bare \r, exit 0
//	flood <bytes>           write bytes without a newline, exit 0
//	sleep <duration>        sleep, exit 0
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	args = args[1:]

	w := bufio.NewWriter(os.Stderr)
	switch args[0] {
	case "emit":
		code, _ := strconv.Atoi(args[1])
		for _, line := range args[2:] {
			fmt.Fprintln(w, line)
		}
		w.Flush()
		os.Exit(code)
	case "cr":
		fmt.Fprint(w, strings.Join(args[1:], "\r"))
		w.Flush()
		os.Exit(0)
	case "flood":
		n, _ := strconv.Atoi(args[1])
		w.WriteString(strings.Repeat("x", n))
		w.Flush()
		os.Exit(0)
	case "sleep":
		d, _ := time.ParseDuration(args[1])
		time.Sleep(d)
		os.Exit(0)
	}
	os.Exit(2)
}

func helperConfig(args ...string) Config {
	return Config{
		Binary:  os.Args[0],
		Args:    append([]string{"-test.run=TestHelperProcess", "--"}, args...),
		Env:     append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"),
		Sampler: NewNullSampler(),
	}
}

func collect(p Process) []string {
	var lines []string
	for line := range p.Lines() {
		lines = append(lines, line)
	}
	return lines
}

func TestStartRequiresBinary(t *testing.T) {
	_, err := Start(Config{})
	assert.Error(t, err)
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(Config{Binary: "/nonexistent/ffmpeg-binary", Sampler: NewNullSampler()})
	assert.Error(t, err)
}

func TestLinesAndSuccessfulExit(t *testing.T) {
	p, err := Start(helperConfig("emit", "0", "Duration: 00:10:00.00", "time=00:05:00.00"))
	require.NoError(t, err)
	assert.Positive(t, p.PID())

	lines := collect(p)
	assert.Equal(t, []string{"Duration: 00:10:00.00", "time=00:05:00.00"}, lines)
	assert.NoError(t, p.Err())

	exit, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, exit.Success())
	assert.Equal(t, 0, exit.Code)
	assert.Equal(t, "finished", exit.State)
}

func TestLinesAreNotRestartable(t *testing.T) {
	p, err := Start(helperConfig("emit", "0", "a", "b"))
	require.NoError(t, err)

	assert.Len(t, collect(p), 2)
	assert.Empty(t, collect(p))

	_, err = p.Wait()
	require.NoError(t, err)
}

func TestCarriageReturnSplitsLines(t *testing.T) {
	p, err := Start(helperConfig("cr", "time=00:00:01.00", "time=00:00:02.00", "time=00:00:03.00"))
	require.NoError(t, err)

	assert.Equal(t, []string{"time=00:00:01.00", "time=00:00:02.00", "time=00:00:03.00"}, collect(p))

	_, err = p.Wait()
	require.NoError(t, err)
}

func TestNonZeroExit(t *testing.T) {
	p, err := Start(helperConfig("emit", "1", "Conversion failed!"))
	require.NoError(t, err)

	collect(p)
	exit, err := p.Wait()
	require.NoError(t, err)
	assert.False(t, exit.Success())
	assert.Equal(t, 1, exit.Code)
	assert.Equal(t, "failed", exit.State)
}

func TestWaitIsIdempotent(t *testing.T) {
	p, err := Start(helperConfig("emit", "3"))
	require.NoError(t, err)

	first, err1 := p.Wait()
	second, err2 := p.Wait()
	assert.Equal(t, first, second)
	assert.Equal(t, err1, err2)
}

func TestOverlongLineReportsReadError(t *testing.T) {
	p, err := Start(helperConfig("flood", strconv.Itoa(maxLineSize+1024)))
	require.NoError(t, err)

	assert.Empty(t, collect(p))
	assert.ErrorIs(t, p.Err(), bufio.ErrTooLong)

	exit, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, exit.Success())
}

func TestWaitWithoutReadingDrainsStream(t *testing.T) {
	p, err := Start(helperConfig("flood", strconv.Itoa(256*1024)))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Wait blocked on an undrained pipe")
	}
}

func TestStopInterruptsProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a sleeping process")
	}
	cfg := helperConfig("sleep", "30s")
	cfg.KillTimeout = 500 * time.Millisecond
	p, err := Start(cfg)
	require.NoError(t, err)

	go func() {
		collect(p)
		p.Wait()
	}()

	require.NoError(t, p.Stop(true))

	exit, err := p.Wait()
	require.NoError(t, err)
	assert.False(t, exit.Success())
	assert.Equal(t, "killed", exit.State)
	assert.False(t, exit.Stale)
}

func TestStaleTimeoutStopsProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a sleeping process")
	}
	cfg := helperConfig("sleep", "30s")
	cfg.StaleTimeout = 200 * time.Millisecond
	cfg.KillTimeout = 500 * time.Millisecond
	p, err := Start(cfg)
	require.NoError(t, err)

	collect(p)
	exit, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, exit.Stale)
	assert.Equal(t, "killed", exit.State)
}

func TestStateChangeCallback(t *testing.T) {
	changes := make(chan string, 8)
	cfg := helperConfig("emit", "0")
	cfg.OnStateChange = func(from, to string) {
		changes <- from + "->" + to
	}
	p, err := Start(cfg)
	require.NoError(t, err)
	collect(p)
	_, err = p.Wait()
	require.NoError(t, err)

	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case c := <-changes:
			got = append(got, c)
		case <-timeout:
			t.Fatalf("state changes: %v", got)
		}
	}
	assert.ElementsMatch(t, []string{"starting->running", "running->finished"}, got)
}

func TestScanLine(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		atEOF   bool
		advance int
		token   string
	}{
		{"newline", "abc\ndef", false, 4, "abc"},
		{"carriage return", "abc\rdef", false, 4, "abc"},
		{"leading separators", "\r\n\rabc\n", false, 7, "abc"},
		{"incomplete", "abc", false, 0, ""},
		{"incomplete at eof", "abc", true, 3, "abc"},
		{"only separators", "\r\n", false, 2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advance, token, err := scanLine([]byte(tt.data), tt.atEOF)
			require.NoError(t, err)
			assert.Equal(t, tt.advance, advance)
			assert.Equal(t, tt.token, string(token))
		})
	}
}
