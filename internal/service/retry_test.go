package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("хотели nil, получили %v", err)
	}
	if calls != 1 {
		t.Errorf("хотели 1 вызов, получили %d", calls)
	}
}

func TestRetryPolicy_SuccessAfterRetries(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("временная ошибка")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("хотели nil, получили %v", err)
	}
	if calls != 3 {
		t.Errorf("хотели 3 вызова, получили %d", calls)
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	calls := 0
	wantErr := errors.New("постоянная ошибка")
	p := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("хотели %v, получили %v", wantErr, err)
	}
	if calls != 3 {
		t.Errorf("хотели 3 вызова, получили %d", calls)
	}
}

func TestRetryPolicy_NotRetryable(t *testing.T) {
	calls := 0
	fatal := errors.New("фатальная ошибка")
	p := RetryPolicy{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
	}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("хотели %v, получили %v", fatal, err)
	}
	if calls != 1 {
		t.Errorf("хотели 1 вызов без повторов, получили %d", calls)
	}
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 10, Delay: time.Minute}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("ошибка")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("хотели context.Canceled, получили %v", err)
	}
	if calls != 1 {
		t.Errorf("хотели 1 вызов, получили %d", calls)
	}
}

func TestRetryPolicy_ZeroAttempts(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxAttempts: 0}

	_ = p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Errorf("хотели минимум 1 вызов, получили %d", calls)
	}
}
