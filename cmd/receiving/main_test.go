package main

import (
	"testing"

	_ "github.com/odyssey-erp/receiving/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	main()
}
