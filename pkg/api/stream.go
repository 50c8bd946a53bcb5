package api

import (
	"context"
	"sync"
)

// Stream is the consumer side of one streaming action execution. Partial
// results arrive through Next as the action produces them; the terminal
// (Result, State) pair becomes available once the producer returns, at which
// point Next reports false. Collect drains the remaining partials and blocks
// until the terminal pair is ready.
//
// The producer is paced by the consumer: it suspends between partial results
// until the consumer reads the previous one. Abandoning a stream without
// draining it requires Close, which cancels the producer's context and
// waits for it to release its resources; a closed stream commits nothing.
//
// A Stream is single-consumer and not safe for concurrent use.
type Stream struct {
	action string
	items  chan streamItem
	cancel context.CancelFunc

	closeOnce sync.Once

	finalResult Result
	finalState  State
	finalErr    error
}

type streamItem struct {
	partial  Result
	terminal bool
}

// StreamConfig wires engine-side accounting into a stream execution.
type StreamConfig struct {
	// OnFirstItem fires once, when the producer emits its first item
	// (partial or terminal).
	OnFirstItem func()

	// Commit is invoked exactly once when the producer finishes, with the
	// action's final result, state and error. It runs on the producer
	// goroutine before the terminal item is delivered, so consumers never
	// observe a final state that has not been committed. A commit error
	// becomes the stream's terminal error when the action itself
	// succeeded.
	Commit func(result Result, state State, err error) error
}

// StartStream executes an action in streaming mode and returns the consumer
// container. Actions that do not implement StreamingAction run atomically
// and surface as a stream with no partial items; streaming capability is
// transparently backward-compatible for consumers.
func StartStream(ctx context.Context, action Action, state State, inputs Inputs, cfg StreamConfig) *Stream {
	pctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		action: action.Name(),
		items:  make(chan streamItem),
		cancel: cancel,
	}

	var first sync.Once
	markFirst := func() {
		if cfg.OnFirstItem != nil {
			first.Do(cfg.OnFirstItem)
		}
	}

	emit := func(r Result) error {
		select {
		case s.items <- streamItem{partial: r}:
			markFirst()
			return nil
		case <-pctx.Done():
			return pctx.Err()
		}
	}

	go func() {
		defer close(s.items)

		var (
			res Result
			ns  State
			err error
		)
		if sa, ok := action.(StreamingAction); ok {
			res, ns, err = sa.RunStream(pctx, state, inputs, emit)
		} else {
			res, ns, err = action.Run(pctx, state, inputs)
		}
		if err == nil && pctx.Err() != nil {
			// The consumer went away mid-production; treat the run
			// as cancelled even if the action ignored its context.
			err = pctx.Err()
		}

		if cfg.Commit != nil {
			if cerr := cfg.Commit(res, ns, err); cerr != nil && err == nil {
				err = cerr
				res, ns = nil, State{}
			}
		}

		s.finalResult = res
		s.finalState = ns
		s.finalErr = err

		select {
		case s.items <- streamItem{terminal: true}:
			markFirst()
		case <-pctx.Done():
		}
	}()

	return s
}

// Action returns the name of the action this stream executes.
func (s *Stream) Action() string { return s.action }

// Next returns the next partial result. ok is false once the stream has
// ended, after which Result reports the terminal outcome.
func (s *Stream) Next() (partial Result, ok bool) {
	item, open := <-s.items
	if !open || item.terminal {
		return nil, false
	}
	return item.partial, true
}

// Result returns the terminal (result, state, error) triple. It must only
// be called after Next has reported false (or Collect has returned); before
// that the values are not yet settled.
func (s *Stream) Result() (Result, State, error) {
	return s.finalResult, s.finalState, s.finalErr
}

// Collect drains any remaining partial results and returns the terminal
// outcome. Collecting a stream yields exactly what running the action
// atomically would have returned.
func (s *Stream) Collect() (Result, State, error) {
	for {
		if _, ok := s.Next(); !ok {
			break
		}
	}
	return s.Result()
}

// Close cancels the producer if it is still running and waits for it to
// finish, releasing any resources the action holds. Closing an exhausted
// stream is a no-op. After an early Close, no state is committed and
// Result reports a cancellation error.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.items {
		}
	})
}
