package main

import (
	"testing"

	_ "github.com/odyssey-erp/receiving/internal/testing/guard"
)

func TestWorkerSkipsStartupInTestMode(t *testing.T) {
	main()
}
