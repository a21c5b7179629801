package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driving"
	"github.com/custodia-labs/mosaic/internal/logger"
)

// Ensure BatchRunner implements the interface.
var _ driving.BatchService = (*BatchRunner)(nil)

// BatchRunner runs one discovery per topic, one topic at a time.
type BatchRunner struct {
	discovery driving.DiscoveryService
	now       func() time.Time
	wait      func(ctx context.Context, d time.Duration) error
}

// NewBatchRunner creates a batch runner over a discovery service.
func NewBatchRunner(discovery driving.DiscoveryService) *BatchRunner {
	return &BatchRunner{
		discovery: discovery,
		now:       time.Now,
		wait:      sleepContext,
	}
}

// RunTopics runs every topic in order. A failed topic is recorded and the
// batch continues; only cancellation of ctx stops it early.
func (b *BatchRunner) RunTopics(
	ctx context.Context,
	topics []string,
	opts domain.BatchOptions,
) (*domain.BatchSummary, error) {
	topics = cleanTopics(topics)
	if len(topics) == 0 {
		return nil, &domain.ValidationError{Field: "topics", Reason: "at least one topic is required"}
	}

	summary := &domain.BatchSummary{
		TotalTopics: len(topics),
		Results:     make([]domain.TopicResult, 0, len(topics)),
		StartedAt:   b.now().UTC(),
	}
	defer func() {
		summary.FinishedAt = b.now().UTC()
	}()

	for i, topic := range topics {
		if i > 0 && opts.Delay > 0 {
			if err := b.wait(ctx, opts.Delay); err != nil {
				return summary, err
			}
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		logger.Section(fmt.Sprintf("Topic %d/%d: %s", i+1, len(topics), topic))
		tr := b.runTopic(ctx, topic, opts)
		summary.Results = append(summary.Results, tr)
		if tr.Success {
			summary.SuccessfulTopics++
			summary.TotalItemsNew += tr.ItemsNew
			summary.TotalItemsMerged += tr.ItemsMerged
		} else {
			summary.FailedTopics++
		}
	}

	logger.Info("Batch finished: %d/%d topics succeeded, %d new, %d merged",
		summary.SuccessfulTopics, summary.TotalTopics, summary.TotalItemsNew, summary.TotalItemsMerged)
	return summary, nil
}

func (b *BatchRunner) runTopic(ctx context.Context, topic string, opts domain.BatchOptions) domain.TopicResult {
	tr := domain.TopicResult{
		Topic:     topic,
		Query:     TopicQuery(opts.QueryTemplate, topic),
		StartedAt: b.now().UTC(),
	}

	result, err := b.discovery.Run(ctx, tr.Query, opts.Run)
	tr.FinishedAt = b.now().UTC()
	if result != nil {
		tr.RunID = result.RunID
		tr.Status = result.Status
		tr.ItemsNew = result.ItemsNew
		tr.ItemsMerged = result.ItemsMerged
		tr.Candidates = result.TotalCandidates
	}

	switch {
	case err != nil:
		tr.Error = err.Error()
		logger.Warn("Topic %q failed: %v", topic, err)
	case result.Status == domain.RunStatusFailed:
		tr.Error = "all providers failed"
		logger.Warn("Topic %q failed: all providers failed", topic)
	default:
		tr.Success = true
	}
	return tr
}

// TopicQuery expands a topic with the query template. The template must
// hold exactly one %s; any other template is ignored. Other % signs are
// kept as written.
func TopicQuery(template, topic string) string {
	if strings.Count(template, "%s") != 1 {
		return topic
	}
	return strings.Replace(template, "%s", topic, 1)
}

func cleanTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
