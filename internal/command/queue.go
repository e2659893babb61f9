// Package command implements the single FIFO command queue and worker
// that serializes every outbound control operation: one worker, one
// command in flight at a time, because control-byte allocation and the
// optimistic-state-then-send ordering both depend on strict sequencing
// (spec §5).
package command

import (
	"context"
)

// Kind enumerates the operations a command can carry out.
type Kind int

const (
	KindPower Kind = iota
	KindBrightness
	KindTemperature
	KindRGB
	KindFanSpeed
	KindLightshow
)

// TargetKind distinguishes a device target from a group target.
type TargetKind int

const (
	TargetDevice TargetKind = iota
	TargetGroup
)

// Command is one queued control operation.
type Command struct {
	Kind       Kind
	Target     TargetKind
	TargetID   int
	On         bool
	Brightness uint8
	Temperature uint8
	R, G, B    uint8
	FanSpeed   string // "off", "low", "medium", "high", "max"
	Effect     string

	// done is closed by the worker once the command's lifecycle
	// completes (acked, timed out, or failed to send); callers that
	// don't need to wait may leave Done unread.
	done chan Outcome
}

// Outcome reports how a command's lifecycle concluded.
type Outcome struct {
	Acked bool
	Err   error
}

// Done returns a channel the caller may receive from to learn the
// command's outcome. Safe to ignore for fire-and-forget callers.
func (c *Command) Done() <-chan Outcome {
	return c.done
}

// Queue is a single-worker FIFO of commands.
type Queue struct {
	items  chan *Command
	runner *Worker
}

// NewQueue creates a queue with the given buffer depth, backed by
// worker to execute each command.
func NewQueue(worker *Worker, depth int) *Queue {
	if depth <= 0 {
		depth = 64
	}
	return &Queue{items: make(chan *Command, depth), runner: worker}
}

// Enqueue appends a command to the tail of the FIFO and returns a
// handle to observe its outcome. Blocks if the queue is full.
func (q *Queue) Enqueue(cmd *Command) *Command {
	cmd.done = make(chan Outcome, 1)
	q.items <- cmd
	return cmd
}

// Run drains the queue one command at a time until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-q.items:
			outcome := q.runner.Execute(ctx, cmd)
			cmd.done <- outcome
			close(cmd.done)
		}
	}
}
