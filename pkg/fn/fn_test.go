package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// --- Result ---

func okValue[T any](t *testing.T, r Result[T]) T {
	t.Helper()
	v, err := r.Unwrap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

func TestOkAndErr(t *testing.T) {
	r := Ok(7)
	if !r.IsOk() || r.IsErr() || r.Failure() != nil {
		t.Fatal("expected ok result")
	}
	v, err := r.Unwrap()
	if v != 7 || err != nil {
		t.Fatalf("Unwrap = %d, %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() || e.Failure() == nil {
		t.Fatal("expected err result")
	}
	if v, err := e.Unwrap(); v != 0 || err == nil {
		t.Fatalf("Unwrap = %d, %v", v, err)
	}
}

func TestErrf(t *testing.T) {
	base := errors.New("root")
	r := Errf[string]("wrap: %w", base)
	if !errors.Is(r.Failure(), base) {
		t.Fatalf("expected wrapped error, got %v", r.Failure())
	}
}

func TestFromPair(t *testing.T) {
	if okValue(t, FromPair(1, nil)) != 1 {
		t.Fatal("FromPair ok")
	}
	if FromPair(0, errors.New("x")).IsOk() {
		t.Fatal("FromPair err")
	}
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2)})
	if got := okValue(t, all); len(got) != 2 || got[1] != 2 {
		t.Fatalf("Collect = %v", got)
	}
	first := errors.New("first")
	mixed := Collect([]Result[int]{Ok(1), Err[int](first), Err[int](errors.New("second"))})
	if !errors.Is(mixed.Failure(), first) {
		t.Fatalf("expected first error, got %v", mixed.Failure())
	}
}

// --- Slices ---

func TestMapFilter(t *testing.T) {
	got := Map([]int{1, 2, 3}, strconv.Itoa)
	if len(got) != 3 || got[2] != "3" {
		t.Fatalf("Map = %v", got)
	}
	even := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(even) != 2 || even[0] != 2 {
		t.Fatalf("Filter = %v", even)
	}
}

func TestChunk(t *testing.T) {
	got := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[2]) != 1 {
		t.Fatalf("Chunk = %v", got)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("Chunk with n<=0 should be nil")
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"a", "b", "a", "c", "b"})
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("Unique = %v", got)
	}
}

// --- Parallel ---

func TestParMapResult_PreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	out := ParMapResult(items, 2, func(v int) Result[int] {
		time.Sleep(time.Duration(v) * time.Millisecond)
		return Ok(v * 10)
	})
	for i, r := range out {
		if v := okValue(t, r); v != items[i]*10 {
			t.Fatalf("index %d: got %d", i, v)
		}
	}
}

func TestParMapResult_Empty(t *testing.T) {
	if out := ParMapResult([]int{}, 0, func(v int) Result[int] { return Ok(v) }); len(out) != 0 {
		t.Fatal("expected empty output")
	}
}

func TestParMapCtx_BoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	items := make([]int, 20)
	ParMapCtx(context.Background(), items, 3, func(_ context.Context, v int) Result[int] {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return Ok(v)
	})
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeds 3 workers", peak.Load())
	}
}

func TestParMapCtx_CancelledSkipsWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	out := ParMapCtx(ctx, []int{1, 2, 3}, 1, func(_ context.Context, v int) Result[int] {
		calls.Add(1)
		return Ok(v)
	})
	if calls.Load() != 0 {
		t.Fatalf("expected no calls, got %d", calls.Load())
	}
	for _, r := range out {
		if !errors.Is(r.Failure(), context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", r.Failure())
		}
	}
}

func TestFanOutResult(t *testing.T) {
	ok := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Ok(2) },
	)
	if got := okValue(t, ok); got[0] != 1 || got[1] != 2 {
		t.Fatalf("FanOutResult = %v", got)
	}
	bad := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Err[int](errors.New("x")) },
	)
	if bad.IsOk() {
		t.Fatal("expected error")
	}
}

// --- Stages ---

func TestThen_ShortCircuits(t *testing.T) {
	called := false
	first := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("stop")) })
	second := Stage[int, string](func(_ context.Context, v int) Result[string] {
		called = true
		return Ok(strconv.Itoa(v))
	})
	if Then(first, second)(context.Background(), 1).IsOk() {
		t.Fatal("expected error")
	}
	if called {
		t.Fatal("second stage should not run")
	}

	double := MapStage(func(v int) int { return v * 2 })
	r := Then(double, MapStage(strconv.Itoa))(context.Background(), 4)
	if v := okValue(t, r); v != "8" {
		t.Fatalf("Then = %q", v)
	}
}

func TestTapStage(t *testing.T) {
	seen := 0
	r := TapStage(func(_ context.Context, v int) { seen = v })(context.Background(), 9)
	if okValue(t, r) != 9 || seen != 9 {
		t.Fatal("TapStage should pass through and observe")
	}
}

func TestTracedStage(t *testing.T) {
	s := TracedStage("ok", MapStage(func(v int) int { return v + 1 }))
	if okValue(t, s(context.Background(), 1)) != 2 {
		t.Fatal("TracedStage failed")
	}
	e := TracedStage("err", Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("x")) }))
	if e(context.Background(), 1).IsOk() {
		t.Fatal("TracedStage error should propagate")
	}
}

// --- Retry ---

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(_ context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Err[int](errors.New("not yet"))
		}
		return Ok(42)
	})
	if okValue(t, r) != 42 || attempts != 3 {
		t.Fatalf("Retry = %v after %d attempts", r.Failure(), attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(_ context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("fail"))
	})
	if r.IsOk() || attempts != 2 {
		t.Fatalf("expected 2 failed attempts, got %d", attempts)
	}
}

func TestRetry_ShouldRetryStopsEarly(t *testing.T) {
	permanent := errors.New("permanent")
	attempts := 0
	opts := RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Millisecond,
		ShouldRetry: func(err error) bool { return !errors.Is(err, permanent) },
	}
	r := Retry(context.Background(), opts, func(_ context.Context) Result[int] {
		attempts++
		return Err[int](permanent)
	})
	if !errors.Is(r.Failure(), permanent) || attempts != 1 {
		t.Fatalf("expected single attempt with permanent error, got %d: %v", attempts, r.Failure())
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	r := Retry(ctx, RetryOpts{MaxAttempts: 100, InitialWait: 10 * time.Millisecond, MaxWait: 10 * time.Millisecond}, func(ctx context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	})
	if !errors.Is(r.Failure(), context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", r.Failure())
	}
}

func TestRetryStage(t *testing.T) {
	attempts := 0
	s := RetryStage(RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond},
		Stage[int, int](func(_ context.Context, v int) Result[int] {
			attempts++
			if attempts < 2 {
				return Err[int](errors.New("fail"))
			}
			return Ok(v * 2)
		}))
	if okValue(t, s(context.Background(), 5)) != 10 {
		t.Fatal("RetryStage failed")
	}
}
