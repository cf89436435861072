package handlers

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/mailer"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/report"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

const (
	summaryTTL     = 5 * time.Minute
	summaryCleanup = 10 * time.Minute
)

// Deps are the stores and services the dashboard reads from.
type Deps struct {
	Rosters *roster.Store
	Files   *attendance.Store
	Mailer  *mailer.Mailer // nil disables the email endpoint
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// summaries reconciles class days and caches the result. A rewritten roster
// or attendance file changes the key, so stale entries are never served.
type summaries struct {
	reader  *report.Reader
	files   *attendance.Store
	rosters *roster.Store
	cache   *cache.Cache
	metrics *metrics.Metrics
}

func newSummaries(deps Deps) *summaries {
	return &summaries{
		reader:  report.NewReader(deps.Rosters, deps.Files),
		files:   deps.Files,
		rosters: deps.Rosters,
		cache:   cache.New(summaryTTL, summaryCleanup),
		metrics: deps.Metrics,
	}
}

func (c *summaries) key(classID string, date time.Time) string {
	stamp := func(info os.FileInfo, err error) string {
		if err != nil {
			return "-"
		}
		return fmt.Sprintf("%d.%d", info.ModTime().UnixNano(), info.Size())
	}
	return fmt.Sprintf("%s|%s|%s|%s", classID, date.Format(attendance.DateLayout),
		stamp(c.files.Stat(classID, date)),
		stamp(os.Stat(c.rosters.RosterPath(classID))))
}

func (c *summaries) get(classID string, date time.Time) (*report.Summary, error) {
	key := c.key(classID, date)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.ObserveReportLoad("cached")
		return v.(*report.Summary), nil
	}

	s, err := c.reader.Reconcile(classID, date)
	if err != nil {
		c.metrics.ObserveReportLoad("error")
		return nil, err
	}

	if s.NoData {
		c.metrics.ObserveReportLoad("no_data")
	} else {
		c.metrics.ObserveReportLoad("ok")
	}
	c.cache.Set(key, s, cache.DefaultExpiration)
	return s, nil
}
