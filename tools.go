//go:build tools

// Pins development tools in go.sum so the lint version matches CI.
// Install with: go install github.com/golangci/golangci-lint/cmd/golangci-lint
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
)
