// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Provider: Queries one search backend for raw hits
//   - ProviderRegistry: Builds providers from settings
//   - Normaliser: Cleans raw content into plain text
//   - ItemStore: Item persistence with atomic read-merge-write
//   - Similarity: Scores two items for near-duplicate detection
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Extractor: Structured extraction. Without it, items keep normaliser defaults.
//   - Tagger: Taxonomy tagging. Without it, items carry no tags.
//   - LLMService: Backs the extractor and tagger.
//   - EmbeddingService: Backs embedding similarity. Without it, fingerprint similarity is used.
//   - RunObserver: Receives finished runs, e.g. for metrics.
//   - SchedulerStore: Persists scheduler state for the daemon.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, provider, or normaliser package
package driven
