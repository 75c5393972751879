package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 200*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 200ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 2*time.Second {
		t.Errorf("MaxBackoff = %v, want 2s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfig_ForClass(t *testing.T) {
	base := DefaultRetryConfig()

	if got := base.forClass(ErrorClassServer).InitialBackoff; got != base.InitialBackoff {
		t.Errorf("server InitialBackoff = %v, want %v", got, base.InitialBackoff)
	}
	if got := base.forClass(ErrorClassNetwork).InitialBackoff; got != 2*base.InitialBackoff {
		t.Errorf("network InitialBackoff = %v, want %v", got, 2*base.InitialBackoff)
	}

	capped := RetryConfig{InitialBackoff: time.Second, MaxBackoff: time.Second}
	if got := capped.forClass(ErrorClassNetwork).InitialBackoff; got != time.Second {
		t.Errorf("network InitialBackoff should be capped, got %v", got)
	}
}

func TestRetryWithBackoff_SuccessFirstTry(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), func() (ErrorClass, error) {
		calls++
		return "", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), func() (ErrorClass, error) {
		calls++
		if calls < 3 {
			return ErrorClassServer, errors.New("status 503")
		}
		return "", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	want := errors.New("status 404")
	err := retryWithBackoff(context.Background(), fastRetry(3), func() (ErrorClass, error) {
		calls++
		return ErrorClassClient, want
	})

	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	calls := 0
	cause := errors.New("connection refused")
	err := retryWithBackoff(context.Background(), fastRetry(3), func() (ErrorClass, error) {
		calls++
		return ErrorClassNetwork, cause
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("err = %v, want ErrRetryExhausted", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, should wrap the last cause", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_SingleAttemptReturnsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := retryWithBackoff(context.Background(), fastRetry(1), func() (ErrorClass, error) {
		return ErrorClassNetwork, cause
	})

	if err != cause {
		t.Errorf("err = %v, want the bare cause", err)
	}
}

func TestRetryWithBackoff_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = retryWithBackoff(context.Background(), RetryConfig{}, func() (ErrorClass, error) {
		calls++
		return ErrorClassServer, errors.New("boom")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 2}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := retryWithBackoff(ctx, cfg, func() (ErrorClass, error) {
		calls++
		return ErrorClassServer, errors.New("status 500")
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("err = %v, want ErrContextCancelled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
