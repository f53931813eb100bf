package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mindcare/backend/internal/analytics"
	"mindcare/backend/internal/repository"
	"mindcare/backend/pkg/logger"
	"mindcare/backend/shared/observability"
)

// ErrAnalyticsUnavailable wraps storage failures while building a report.
var ErrAnalyticsUnavailable = errors.New("analytics are unavailable")

// Period describes the two windows a report compares.
type Period struct {
	Days          int       `json:"days"`
	CurrentStart  time.Time `json:"currentStart"`
	CurrentEnd    time.Time `json:"currentEnd"`
	PreviousStart time.Time `json:"previousStart"`
	PreviousEnd   time.Time `json:"previousEnd"`
}

// NewPeriod returns the window [end-days, end) and the equally long window before it.
func NewPeriod(end time.Time, days int) Period {
	span := time.Duration(days) * 24 * time.Hour
	return Period{
		Days:          days,
		CurrentStart:  end.Add(-span),
		CurrentEnd:    end,
		PreviousStart: end.Add(-2 * span),
		PreviousEnd:   end.Add(-span),
	}
}

// KeywordReport is the keyword popularity of user messages in a period.
type KeywordReport struct {
	analytics.Result
	Period Period `json:"period"`
}

// DailyCount is the number of messages created on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ChatOverview summarises chat activity in the current window.
type ChatOverview struct {
	Period         Period       `json:"period"`
	TotalSessions  int64        `json:"totalSessions"`
	TotalMessages  int64        `json:"totalMessages"`
	UserMessages   int64        `json:"userMessages"`
	ActiveUsers    int64        `json:"activeUsers"`
	MessagesPerDay []DailyCount `json:"messagesPerDay"`
}

// AnalyticsService builds admin reports from stored chat messages.
// Reports are computed on every call and never cached.
type AnalyticsService struct {
	stats     repository.MessageStats
	durations *prometheus.HistogramVec
	log       *logger.Logger
	now       func() time.Time
}

// NewAnalyticsService wires the service. durations may be nil.
func NewAnalyticsService(stats repository.MessageStats, durations *prometheus.HistogramVec, log *logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		stats:     stats,
		durations: durations,
		log:       log.WithComponent("analytics_service"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// KeywordPopularity ranks keywords of user messages from the last days days
// against the days before them. days and limit are validated by the caller.
func (s *AnalyticsService) KeywordPopularity(ctx context.Context, days, limit int) (*KeywordReport, error) {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "analytics.KeywordPopularity")
	defer span.End()
	span.SetAttributes(attribute.Int("analytics.days", days), attribute.Int("analytics.limit", limit))

	period := NewPeriod(s.now(), days)

	current, err := s.stats.UserMessageTexts(ctx, period.CurrentStart, period.CurrentEnd)
	if err != nil {
		return nil, s.fail(span, err)
	}
	previous, err := s.stats.UserMessageTexts(ctx, period.PreviousStart, period.PreviousEnd)
	if err != nil {
		return nil, s.fail(span, err)
	}

	start := time.Now()
	result := analytics.Analyze(current, previous, limit)
	s.observe("keywords", time.Since(start))

	span.SetAttributes(
		attribute.Int("analytics.messages", result.Summary.TotalMessages),
		attribute.Int("analytics.unique_keywords", result.Summary.UniqueKeywords),
	)
	return &KeywordReport{Result: result, Period: period}, nil
}

// ChatOverview counts sessions, messages and active users in the last days days
func (s *AnalyticsService) ChatOverview(ctx context.Context, days int) (*ChatOverview, error) {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "analytics.ChatOverview")
	defer span.End()
	span.SetAttributes(attribute.Int("analytics.days", days))

	start := time.Now()
	period := NewPeriod(s.now(), days)

	o, err := s.stats.Overview(ctx, period.CurrentStart, period.CurrentEnd)
	if err != nil {
		return nil, s.fail(span, err)
	}

	overview := &ChatOverview{
		Period:         period,
		TotalSessions:  o.TotalSessions,
		TotalMessages:  o.TotalMessages,
		UserMessages:   o.UserMessages,
		ActiveUsers:    o.ActiveUsers,
		MessagesPerDay: perDay(period, o.MessageTimes),
	}
	s.observe("overview", time.Since(start))
	return overview, nil
}

// perDay buckets times by UTC date, including empty days of the period.
func perDay(p Period, times []time.Time) []DailyCount {
	counts := make(map[string]int, p.Days+1)
	for _, t := range times {
		counts[t.UTC().Format(time.DateOnly)]++
	}

	var out []DailyCount
	day := p.CurrentStart.UTC().Truncate(24 * time.Hour)
	for !day.After(p.CurrentEnd) {
		key := day.Format(time.DateOnly)
		out = append(out, DailyCount{Date: key, Count: counts[key]})
		day = day.Add(24 * time.Hour)
	}
	return out
}

func (s *AnalyticsService) observe(report string, d time.Duration) {
	if s.durations != nil {
		s.durations.WithLabelValues(report).Observe(d.Seconds())
	}
}

func (s *AnalyticsService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.log.LogError(err, "Analytics query failed")
	return fmt.Errorf("%w: %v", ErrAnalyticsUnavailable, err)
}
