package driven

import "github.com/custodia-labs/mosaic/internal/core/domain"

// RunObserver is notified of every finished discovery run.
type RunObserver interface {
	ObserveRun(result *domain.RunResult)
}
