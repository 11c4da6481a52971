// Package prompt asks an operator to approve each orchestrator transition.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

// Confirmer implements pipeline.Hooks by reading y/n answers from a reader.
// EOF and anything other than yes decline.
type Confirmer struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
	// pending holds a read left unfinished by a cancelled prompt.
	pending chan string
}

var _ pipeline.Hooks = (*Confirmer)(nil)

// New builds a Confirmer reading from in and prompting on out.
func New(in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{in: bufio.NewReader(in), out: out}
}

// BeforeTransition prompts for state and returns pipeline.ErrRunAborted on a
// declined answer.
func (c *Confirmer) BeforeTransition(ctx context.Context, state pipeline.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.out, "Proceed to %s? [y/N] ", state); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}

	if c.pending == nil {
		c.pending = make(chan string, 1)
		go func(answers chan<- string) {
			line, _ := c.in.ReadString('\n')
			answers <- line
		}(c.pending)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case line := <-c.pending:
		c.pending = nil
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return nil
		default:
			return fmt.Errorf("%s declined: %w", state, pipeline.ErrRunAborted)
		}
	}
}
