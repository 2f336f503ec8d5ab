package main

import (
	"fmt"
	"io"
	"time"

	"cinder/internal/backend"
)

func printStageTimings(out io.Writer, timings backend.Timings) {
	if out == nil {
		return
	}
	stages := []struct {
		stage backend.Stage
		label string
	}{
		{backend.StageVerify, "verified"},
		{backend.StageOptimize, "optimized"},
		{backend.StageLower, "lowered"},
		{backend.StageRegalloc, "allocated"},
		{backend.StageEmit, "emitted"},
	}
	for _, s := range stages {
		if !timings.Has(s.stage) {
			continue
		}
		fmt.Fprintf(out, "%s %.1f ms\n", s.label, toMillis(timings.Duration(s.stage)))
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
