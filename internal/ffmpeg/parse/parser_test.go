// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package parse

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{
			name: "ffmpeg duration line",
			line: "  Duration: 01:23:45.67, start: 0.000000, bitrate: 5012 kb/s",
			want: Event{Kind: DurationFound, Seconds: 5025},
		},
		{
			name: "progress line without duration",
			line: "frame= 1500 fps=0.0 q=-1.0 size=   10240kB time=00:41:30.12 bitrate=1225.6kbits/s speed=130x",
			want: Event{Kind: PositionUpdate, Seconds: 2490},
		},
		{
			name: "duration not available",
			line: "  Duration: N/A, bitrate: N/A",
			want: Event{},
		},
		{
			name: "garbage duration",
			line: "Duration: garbage",
			want: Event{},
		},
		{
			name: "garbage time",
			line: "time=notatime",
			want: Event{},
		},
		{
			name: "missing fraction",
			line: "time=00:00:10",
			want: Event{},
		},
		{
			name: "overflowing hours",
			line: "time=99999999999999999999:00:00.00",
			want: Event{},
		},
		{
			name: "unrelated",
			line: "Stream #0:0: Video: h264 (High), yuv420p, 1920x1080",
			want: Event{},
		},
		{
			name: "empty",
			line: "",
			want: Event{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Config{})
			assert.Equal(t, tt.want, p.Parse(tt.line))
		})
	}
}

func TestParseDurationThenPosition(t *testing.T) {
	p := New(Config{})

	assert.Equal(t, Event{Kind: DurationFound, Seconds: 600}, p.Parse("Duration: 00:10:00.00"))
	assert.Equal(t, Event{Kind: PositionUpdate, Seconds: 300, Percent: 50, HasPercent: true}, p.Parse("time=00:05:00.00"))
}

func TestParseSpecExample(t *testing.T) {
	p := New(Config{})
	p.Parse("  Duration: 01:23:45.67, start: 0.000000")
	ev := p.Parse("size=  102400kB time=00:41:30.12 bitrate=")

	require.True(t, ev.HasPercent)
	assert.Equal(t, 49, ev.Percent)
}

func TestDurationLatchesFirstValue(t *testing.T) {
	p := New(Config{})

	assert.Equal(t, DurationFound, p.Parse("Duration: 00:10:00.00").Kind)
	assert.Equal(t, None, p.Parse("Duration: 00:20:00.00").Kind)
	assert.Equal(t, None, p.Parse("Duration: 00:00:30.00").Kind)

	ev := p.Parse("time=00:05:00.00")
	assert.True(t, ev.HasPercent)
	assert.Equal(t, 50, ev.Percent)
}

func TestDurationLatchSurvivesManyAnnouncements(t *testing.T) {
	for first := 1; first <= 5; first++ {
		p := New(Config{})
		p.Parse(fmt.Sprintf("Duration: 00:00:%02d.00", first*10))
		for other := 1; other <= 5; other++ {
			p.Parse(fmt.Sprintf("Duration: 00:00:%02d.00", other*7))
		}
		ev := p.Parse(fmt.Sprintf("time=00:00:%02d.00", first*5))
		assert.Equal(t, 50, ev.Percent, "first duration %ds", first*10)
	}
}

func TestPositionBeforeDurationHasNoPercent(t *testing.T) {
	p := New(Config{})

	ev := p.Parse("time=00:00:05.00")
	assert.Equal(t, PositionUpdate, ev.Kind)
	assert.False(t, ev.HasPercent)
	assert.Zero(t, ev.Percent)
}

func TestLineWithDurationLatchedFallsThroughToTime(t *testing.T) {
	p := New(Config{})
	p.Parse("Duration: 00:01:40.00")

	ev := p.Parse("Duration: 00:05:00.00 time=00:00:50.00")
	assert.Equal(t, Event{Kind: PositionUpdate, Seconds: 50, Percent: 50, HasPercent: true}, ev)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		current, total, want int
	}{
		{300, 600, 50},
		{2490, 5025, 49},
		{0, 600, 0},
		{600, 600, 100},
		{601, 600, 100},
		{10000, 1, 100},
		{5, 0, 0},
		{0, 0, 0},
		{-5, 100, 0},
		{1, 3, 33},
		{2, 3, 66},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.current, tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.current, tt.total))
		})
	}
}

func TestLinesSkipsNone(t *testing.T) {
	p := New(Config{})
	lines := slices.Values([]string{
		"ffmpeg version 6.1",
		"Duration: 00:00:10.00",
		"Stream #0:0",
		"time=00:00:02.00",
		"time=N/A",
		"time=00:00:04.00",
	})

	var kinds []Kind
	var percents []int
	for ev := range p.Lines(lines) {
		kinds = append(kinds, ev.Kind)
		percents = append(percents, ev.Percent)
	}

	assert.Equal(t, []Kind{DurationFound, PositionUpdate, PositionUpdate}, kinds)
	assert.Equal(t, []int{0, 20, 40}, percents)
}

func TestLinesStopsEarly(t *testing.T) {
	p := New(Config{})
	lines := slices.Values([]string{"time=00:00:01.00", "time=00:00:02.00", "time=00:00:03.00"})

	n := 0
	for range p.Lines(lines) {
		n++
		break
	}
	assert.Equal(t, 1, n)
	require.Len(t, p.Log(), 1, "lines after the break must not be read")
}

func TestLogRing(t *testing.T) {
	p := New(Config{LogLines: 3})
	for i := 0; i < 5; i++ {
		p.Parse(fmt.Sprintf("line %d", i))
	}

	log := p.Log()
	require.Len(t, log, 3)
	assert.Equal(t, "line 2", log[0].Data)
	assert.Equal(t, "line 4", log[2].Data)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "duration", DurationFound.String())
	assert.Equal(t, "position", PositionUpdate.String())
	assert.Equal(t, "none", None.String())
}
