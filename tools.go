//go:build tools

// Package tools фиксирует версии инструментов, которые запускаются через go run / go generate
package tools

import (
	_ "github.com/vektra/mockery/v2"
)
