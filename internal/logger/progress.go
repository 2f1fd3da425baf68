package logger

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// DefaultProgressEvery is how many events pass between progress lines.
const DefaultProgressEvery = 1_000_000

// Progress counts events and periodically logs the running total, so that
// long passes over large inputs visibly make headway.
type Progress struct {
	label     string
	count     int64
	sometimes rate.Sometimes
	logger    *log.Logger
}

// NewProgress returns a counter that logs every `every` events and at most
// once per interval when interval is non-zero.
func NewProgress(label string, every int, interval time.Duration) *Progress {
	if every <= 0 {
		every = DefaultProgressEvery
	}
	return &Progress{
		label:     label,
		sometimes: rate.Sometimes{Every: every, Interval: interval},
		logger:    std,
	}
}

// Add records one event.
func (p *Progress) Add() {
	p.count++
	p.sometimes.Do(func() {
		if p.count == 1 {
			return
		}
		p.logger.Info(p.label, "count", humanize.Comma(p.count))
	})
}

// Count returns the number of events recorded.
func (p *Progress) Count() int64 {
	return p.count
}

// Done logs the final total.
func (p *Progress) Done() {
	p.logger.Info(p.label+" finished", "count", humanize.Comma(p.count))
}
