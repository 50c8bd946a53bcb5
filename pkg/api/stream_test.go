package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func chunkAction(parts ...string) StreamingAction {
	return StreamingFromFunc("chunks", nil, []string{"joined"},
		func(ctx context.Context, s State, in Inputs, emit Emit) (Result, State, error) {
			joined := ""
			for _, p := range parts {
				if err := emit(Result{"chunk": p}); err != nil {
					return nil, s, err
				}
				joined += p
			}
			return Result{"joined": joined}, s.Set("joined", joined), nil
		},
	)
}

func TestStreamDeliversPartialsThenResult(t *testing.T) {
	committed := false
	s := StartStream(context.Background(), chunkAction("a", "b", "c"), NewState(nil), nil, StreamConfig{
		Commit: func(res Result, state State, err error) error {
			committed = true
			return err
		},
	})

	var got []string
	for {
		partial, ok := s.Next()
		if !ok {
			break
		}
		// The terminal result must not be settled before the producer is
		// done, and the commit runs before the terminal item arrives, so
		// inside the loop commit status is unobservable but partials are
		// strictly ordered.
		got = append(got, partial["chunk"].(string))
	}

	res, state, err := s.Result()
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if !committed {
		t.Fatal("commit must run before the terminal item is delivered")
	}
	if fmt.Sprint(got) != "[a b c]" {
		t.Fatalf("unexpected partial order: %v", got)
	}
	if res["joined"] != "abc" {
		t.Fatalf("expected joined=abc, got %v", res["joined"])
	}
	if v, _ := state.Get("joined"); v != "abc" {
		t.Fatalf("expected state joined=abc, got %v", v)
	}
}

func TestStreamCollectMatchesAtomicRun(t *testing.T) {
	action := chunkAction("x", "y")

	s := StartStream(context.Background(), action, NewState(nil), nil, StreamConfig{})
	streamRes, streamState, err := s.Collect()
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	atomicRes, atomicState, err := action.Run(context.Background(), NewState(nil), nil)
	if err != nil {
		t.Fatalf("atomic Run failed: %v", err)
	}

	if streamRes["joined"] != atomicRes["joined"] {
		t.Fatalf("stream and atomic results differ: %v vs %v", streamRes, atomicRes)
	}
	sv, _ := streamState.Get("joined")
	av, _ := atomicState.Get("joined")
	if sv != av {
		t.Fatalf("stream and atomic states differ: %v vs %v", sv, av)
	}
}

func TestStreamNonStreamingActionOneShot(t *testing.T) {
	atomic := FromFunc("atomic", nil, []string{"out"},
		func(ctx context.Context, s State, in Inputs) (Result, State, error) {
			return Result{"out": 1}, s.Set("out", 1), nil
		},
	)

	s := StartStream(context.Background(), atomic, NewState(nil), nil, StreamConfig{})

	if _, ok := s.Next(); ok {
		t.Fatal("non-streaming action should produce no partial items")
	}
	res, _, err := s.Result()
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if res["out"] != 1 {
		t.Fatalf("expected out=1, got %v", res["out"])
	}
}

func TestStreamCloseCancelsProducer(t *testing.T) {
	produced := make(chan struct{}, 1)
	blocked := StreamingFromFunc("endless", nil, nil,
		func(ctx context.Context, s State, in Inputs, emit Emit) (Result, State, error) {
			for i := 0; ; i++ {
				if err := emit(Result{"i": i}); err != nil {
					return nil, s, err
				}
				select {
				case produced <- struct{}{}:
				default:
				}
			}
		},
	)

	commits := 0
	s := StartStream(context.Background(), blocked, NewState(nil), nil, StreamConfig{
		Commit: func(res Result, state State, err error) error {
			commits++
			return err
		},
	})

	if _, ok := s.Next(); !ok {
		t.Fatal("expected at least one partial before closing")
	}
	<-produced

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not unblock the producer")
	}

	_, _, err := s.Result()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled after early close, got %v", err)
	}
	if commits != 1 {
		t.Fatalf("commit must run exactly once, got %d", commits)
	}
}

func TestStreamOnFirstItemFiresOnce(t *testing.T) {
	first := 0
	s := StartStream(context.Background(), chunkAction("a", "b"), NewState(nil), nil, StreamConfig{
		OnFirstItem: func() { first++ },
	})

	if _, _, err := s.Collect(); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if first != 1 {
		t.Fatalf("OnFirstItem should fire exactly once, got %d", first)
	}
}

func TestStreamCommitErrorSurfaces(t *testing.T) {
	boom := errors.New("checkpoint store down")
	s := StartStream(context.Background(), chunkAction("a"), NewState(nil), nil, StreamConfig{
		Commit: func(res Result, state State, err error) error {
			if err != nil {
				return err
			}
			return boom
		},
	})

	_, _, err := s.Collect()
	if !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}
}
