package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"cinder/internal/backend"
	"cinder/internal/ui"
)

type buildOutcome struct {
	result backend.BuildResult
	err    error
}

// runBuildWithUI runs the build on a worker goroutine while the Bubble
// Tea program owns the terminal. The event channel closes when the
// build returns, which quits the UI.
func runBuildWithUI(ctx context.Context, title string, funcs []string, req *backend.BuildRequest) (backend.BuildResult, error) {
	if req == nil {
		return backend.BuildResult{}, fmt.Errorf("missing build request")
	}
	events := make(chan backend.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = backend.ChannelSink{Ch: events}
		res, err := backend.Build(ctx, &reqCopy)
		outcomeCh <- buildOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, funcs, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
