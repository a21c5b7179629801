// Command mosaic discovers AI tools, models and papers across search
// providers and keeps a deduplicated catalogue of them.
//
// Build with -ldflags "-X github.com/custodia-labs/mosaic/internal/adapters/driving/cli.version=v1.2.3"
// to stamp the version.
package main

import (
	"os"

	"github.com/custodia-labs/mosaic/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
