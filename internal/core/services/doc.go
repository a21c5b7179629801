// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The discovery pipeline lives here: DiscoveryOrchestrator drives a run
// through its states, Deduplicator merges candidates, and LLMExtractor
// and LLMTagger enrich items when an LLM is configured.
package services
