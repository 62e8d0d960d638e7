// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package parse

import (
	"container/ring"
	"iter"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Kind of an Event
type Kind int

const (
	// None means the line carried nothing of interest.
	None Kind = iota
	// DurationFound is emitted once, for the first duration announcement.
	DurationFound
	// PositionUpdate is emitted for every time= line.
	PositionUpdate
)

func (k Kind) String() string {
	switch k {
	case DurationFound:
		return "duration"
	case PositionUpdate:
		return "position"
	}
	return "none"
}

// Event is the result of parsing one line
type Event struct {
	Kind    Kind
	Seconds int
	// Percent is only meaningful when HasPercent is set, i.e. a duration has
	// been latched before this position update.
	Percent    int
	HasPercent bool
}

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time
	Data      string
}

// Config for the parser
type Config struct {
	LogLines int
}

// Parser turns FFmpeg stderr lines into duration and position events. The
// duration latches on first sight for the lifetime of the parser (one run).
type Parser struct {
	re struct {
		duration *regexp.Regexp
		time     *regexp.Regexp
	}

	log      *ring.Ring
	logLines int

	duration    int
	hasDuration bool
	lock        sync.RWMutex
}

// New creates a Parser
func New(config Config) *Parser {
	p := &Parser{
		logLines: config.LogLines,
	}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	p.re.duration = regexp.MustCompile(`Duration:\s*([0-9]+):([0-9]+):([0-9]+)\.([0-9]+)`)
	p.re.time = regexp.MustCompile(`time=\s*([0-9]+):([0-9]+):([0-9]+)\.([0-9]+)`)
	p.log = ring.New(p.logLines)
	return p
}

// Parse parses one line. Unrelated or malformed lines yield an Event of kind
// None.
func (p *Parser) Parse(line string) Event {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.log.Value = Line{Timestamp: time.Now(), Data: line}
	p.log = p.log.Next()

	if strings.Contains(line, "Duration") {
		if secs, ok := matchTimestamp(p.re.duration, line); ok && !p.hasDuration {
			p.duration = secs
			p.hasDuration = true
			return Event{Kind: DurationFound, Seconds: secs}
		}
	}

	if strings.Contains(line, "time=") {
		if secs, ok := matchTimestamp(p.re.time, line); ok {
			ev := Event{Kind: PositionUpdate, Seconds: secs}
			if p.hasDuration {
				ev.Percent = Percent(secs, p.duration)
				ev.HasPercent = true
			}
			return ev
		}
	}

	return Event{}
}

// Lines parses a sequence of lines lazily, skipping lines that yield nothing.
func (p *Parser) Lines(lines iter.Seq[string]) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for line := range lines {
			ev := p.Parse(line)
			if ev.Kind == None {
				continue
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Log returns the last lines seen, oldest first.
func (p *Parser) Log() []Line {
	var out []Line
	p.lock.RLock()
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(Line))
		}
	})
	p.lock.RUnlock()
	return out
}

// Percent returns floor(current/total*100) clamped into [0, 100]. A total of
// zero or less yields 0.
func Percent(current, total int) int {
	if total <= 0 || current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return int(int64(current) * 100 / int64(total))
}

// matchTimestamp extracts HH:MM:SS from the first match of re in line. The
// fractional part must be present but is discarded.
func matchTimestamp(re *regexp.Regexp, line string) (int, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	var parts [3]int64
	for i := range parts {
		x, err := strconv.ParseInt(m[i+1], 10, 32)
		if err != nil {
			return 0, false
		}
		parts[i] = x
	}
	total := parts[0]*3600 + parts[1]*60 + parts[2]
	if total > math.MaxInt32 {
		return 0, false
	}
	return int(total), true
}
