package log

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithNoCancel(t *testing.T) {
	type key struct{}
	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), key{}, "v"), time.Millisecond)
	cancel()
	ctx := WithNoCancel(parent)
	if ctx.Err() != nil {
		t.Errorf("want nil err got %v", ctx.Err())
	}
	if ctx.Done() != nil {
		t.Errorf("want nil done channel")
	}
	if _, ok := ctx.Deadline(); ok {
		t.Errorf("want no deadline")
	}
	if v := ctx.Value(key{}); v != "v" {
		t.Errorf("want v got %v", v)
	}
}

func TestWithTracerPassesError(t *testing.T) {
	want := errors.New("boom")
	got := WithTracer(context.Background(), "log_test", "span", func(ctx context.Context) error {
		return want
	})
	if got != want {
		t.Errorf("want %v got %v", want, got)
	}
}

func TestSafeGoRecovers(t *testing.T) {
	done := make(chan struct{})
	SafeGo(func() {
		defer close(done)
		panic("recovered by SafeGo")
	}, WithName("test"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
}
