package katwalk

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"

	"github.com/robotalks/katwalk/pkg/l0/comm"
)

// StatsSource provides counters of a running session.
type StatsSource interface {
	SessionStats() (engine comm.EngineStats, link comm.LinkStats, ok bool)
}

// StatsReporter logs session counters periodically.
type StatsReporter struct {
	Source   StatsSource
	Interval time.Duration
	Logf     func(format string, args ...interface{})

	last     comm.EngineStats
	lastLink comm.LinkStats
	lastAt   time.Time
}

// NewStatsReporter creates a StatsReporter logging through glog.
func NewStatsReporter(src StatsSource, interval time.Duration) *StatsReporter {
	return &StatsReporter{Source: src, Interval: interval, Logf: glog.Infof}
}

// Run implements Runnable.
func (r *StatsReporter) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.Report(now)
		}
	}
}

// Report logs the counters accumulated since the previous report.
func (r *StatsReporter) Report(now time.Time) {
	engine, link, ok := r.Source.SessionStats()
	if !ok {
		r.last, r.lastLink, r.lastAt = comm.EngineStats{}, comm.LinkStats{}, time.Time{}
		r.Logf("stats: no device")
		return
	}
	if engine.Frames < r.last.Frames {
		// new session.
		r.last, r.lastLink = comm.EngineStats{}, comm.LinkStats{}
	}
	r.Logf("stats: %s", FormatStats(engine, link, r.last, r.lastLink, now.Sub(r.lastAt), !r.lastAt.IsZero()))
	r.last, r.lastLink, r.lastAt = engine, link, now
}

// FormatStats renders counters for logs. With hasRate, frame rate is
// computed from the delta against prev over elapsed.
func FormatStats(engine comm.EngineStats, link comm.LinkStats, prev comm.EngineStats, prevLink comm.LinkStats, elapsed time.Duration, hasRate bool) string {
	s := fmt.Sprintf("frames %s, bad %s, resyncs %s, restarts %s, in %s",
		humanize.Comma(int64(engine.Frames)),
		humanize.Comma(int64(engine.BadFrames)),
		humanize.Comma(int64(engine.Resyncs)),
		humanize.Comma(int64(engine.Restarts)),
		humanize.Bytes(link.BytesIn))
	if link.ReadErrors > 0 || link.WriteErrors > 0 {
		s += fmt.Sprintf(", errors r/w %d/%d", link.ReadErrors, link.WriteErrors)
	}
	if hasRate && elapsed > 0 {
		rate := float64(engine.Frames-prev.Frames) / elapsed.Seconds()
		val, prefix := humanize.ComputeSI(rate)
		s += fmt.Sprintf(", %s %sframes/s, %s/s",
			humanize.FtoaWithDigits(val, 1), prefix,
			humanize.Bytes(uint64(float64(link.BytesIn-prevLink.BytesIn)/elapsed.Seconds())))
	}
	return s
}
