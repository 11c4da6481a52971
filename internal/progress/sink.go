package progress

import "context"

// Sink consumes batches of progress events. Consume may be called many times;
// Close is called once after the final batch.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it, and so does Nop.
type Emitter interface {
	Emit(evt Event)
}

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}

// Nop discards every event.
var Nop Emitter = nopEmitter{}
