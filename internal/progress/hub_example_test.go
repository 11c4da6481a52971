package progress

import (
	"context"
	"fmt"
	"time"
)

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit totals the tasks attempted across phases.
func ExampleHub_Emit() {
	var attempted int
	hub := NewHub(Config{MaxBatchEvents: 1}, sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			attempted += evt.Attempted
		}
		return nil
	}))

	for _, phase := range []string{"search", "validate"} {
		hub.Emit(Event{RunID: "run-1", TS: time.Unix(0, 0), Stage: StagePhaseDone, Phase: phase, Attempted: 2})
	}
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("tasks attempted: %d\n", attempted)
	// Output:
	// tasks attempted: 4
}
