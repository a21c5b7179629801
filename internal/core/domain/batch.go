package domain

import "time"

// BatchOptions configures a topic batch.
type BatchOptions struct {
	// Run is the configuration applied to every topic.
	Run RunConfig

	// Delay is the pause between topics.
	Delay time.Duration

	// QueryTemplate turns a topic into a query; %s is the topic.
	// Empty means the topic is used verbatim.
	QueryTemplate string
}

// TopicResult is the outcome of one topic in a batch.
type TopicResult struct {
	Topic       string    `json:"topic"`
	Query       string    `json:"query"`
	RunID       string    `json:"run_id,omitempty"`
	Status      RunStatus `json:"status"`
	Success     bool      `json:"success"`
	ItemsNew    int       `json:"items_new"`
	ItemsMerged int       `json:"items_merged"`
	Candidates  int       `json:"total_candidates"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// BatchSummary aggregates a topic batch.
type BatchSummary struct {
	TotalTopics      int           `json:"total_topics"`
	SuccessfulTopics int           `json:"successful_topics"`
	FailedTopics     int           `json:"failed_topics"`
	TotalItemsNew    int           `json:"total_items_new"`
	TotalItemsMerged int           `json:"total_items_merged"`
	Results          []TopicResult `json:"results"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
}

// DefaultTopics is the built-in topic list.
func DefaultTopics() []string {
	return []string{
		"large language models",
		"AI agents",
		"multimodal models",
		"retrieval augmented generation",
		"AI code assistants",
		"open source LLMs",
		"AI evaluation benchmarks",
		"diffusion models",
		"speech recognition models",
		"AI safety research",
	}
}

// TestTopics is a short topic list for trial runs.
func TestTopics() []string {
	return []string{
		"large language models",
		"AI agents",
	}
}

// ItemPage is one page of a listing.
type ItemPage struct {
	Items    []*Item `json:"items"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Total    int     `json:"total"`
}

// TotalPages returns the number of pages at the current page size.
func (p *ItemPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// ScoredItem pairs an item with its similarity to a reference item.
type ScoredItem struct {
	Item  *Item   `json:"item"`
	Score float64 `json:"score"`
}

// SettingsIssue is one configuration problem found by a settings check.
type SettingsIssue struct {
	Key     string
	Message string
	Fatal   bool
}
