// Package domain defines the core business entities for mosaic.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawHit: One unprocessed search result from a provider
//   - Item: The durable, normalised record of a discovered piece of content
//   - RunConfig / RunResult: Input and outcome of one discovery run
//   - ContentSchema / PartialContent: What the extractor is asked for and returns
//   - Taxonomy: The closed set of tags an item may carry
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
