package ratelimit

import (
	"testing"
	"time"
)

func testLimiter(cfg Config) (*Limiter, *time.Time) {
	l := New(cfg)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l, _ := testLimiter(Config{RequestsPerHour: 150, Burst: 10, Enabled: true})

	for i := 0; i < 10; i++ {
		if d := l.Allow("meta"); !d.Allowed {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}

	d := l.Allow("meta")
	if d.Allowed {
		t.Fatal("11th request should be denied")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive hint", d.RetryAfter)
	}
}

func TestLimiter_RetryAfterFormula(t *testing.T) {
	l, _ := testLimiter(Config{RequestsPerHour: 150, Burst: 1, Enabled: true})

	if d := l.Allow("meta"); !d.Allowed {
		t.Fatal("first request should be allowed")
	}

	d := l.Allow("meta")
	if d.Allowed {
		t.Fatal("second request should be denied")
	}

	// tokens=0, rate=150/3600 => T = 1/rate = 24s
	want := time.Duration(3600.0 / 150.0 * float64(time.Second))
	diff := d.RetryAfter - want
	if diff < -time.Millisecond || diff > time.Millisecond {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, want)
	}
}

func TestLimiter_LazyRefill(t *testing.T) {
	l, now := testLimiter(Config{RequestsPerHour: 3600, Burst: 2, Enabled: true})

	l.Allow("meta")
	l.Allow("meta")
	if d := l.Allow("meta"); d.Allowed {
		t.Fatal("bucket should be empty")
	}

	// 3600/h = 1 token/sec
	*now = now.Add(1500 * time.Millisecond)

	if d := l.Allow("meta"); !d.Allowed {
		t.Fatal("one token should have refilled after 1.5s")
	}
	if d := l.Allow("meta"); d.Allowed {
		t.Fatal("only one token should have refilled")
	}
}

func TestLimiter_RefillCappedAtBurst(t *testing.T) {
	l, now := testLimiter(Config{RequestsPerHour: 3600, Burst: 5, Enabled: true})

	l.Allow("meta")
	*now = now.Add(time.Hour)

	st := l.Status("meta")
	if st.Remaining != 5 {
		t.Errorf("Remaining = %d, want burst cap 5", st.Remaining)
	}
}

func TestLimiter_NeverNegative(t *testing.T) {
	l, _ := testLimiter(Config{RequestsPerHour: 150, Burst: 3, Enabled: true})

	for i := 0; i < 20; i++ {
		l.Allow("meta")
	}

	st := l.Status("meta")
	if st.Remaining < 0 {
		t.Errorf("Remaining = %d, tokens must never go negative", st.Remaining)
	}
}

func TestLimiter_IndependentProviders(t *testing.T) {
	l, _ := testLimiter(Config{RequestsPerHour: 150, Burst: 1, Enabled: true})

	if d := l.Allow("meta"); !d.Allowed {
		t.Fatal("meta first request should be allowed")
	}
	if d := l.Allow("mock"); !d.Allowed {
		t.Fatal("mock bucket is independent, should be allowed")
	}
	if d := l.Allow("meta"); d.Allowed {
		t.Fatal("meta second request should be denied")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := testLimiter(Config{RequestsPerHour: 1, Burst: 1, Enabled: false})

	for i := 0; i < 100; i++ {
		if d := l.Allow("meta"); !d.Allowed {
			t.Fatal("disabled limiter should always allow")
		}
	}
}

func TestLimiter_HourCounter(t *testing.T) {
	l, now := testLimiter(Config{RequestsPerHour: 150, Burst: 10, Enabled: true})

	for i := 0; i < 3; i++ {
		l.Allow("meta")
	}
	if st := l.Status("meta"); st.RequestsThisHour != 3 {
		t.Errorf("RequestsThisHour = %d, want 3", st.RequestsThisHour)
	}

	*now = now.Add(time.Hour + time.Minute)
	l.Allow("meta")
	if st := l.Status("meta"); st.RequestsThisHour != 1 {
		t.Errorf("RequestsThisHour = %d after window rollover, want 1", st.RequestsThisHour)
	}
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := testLimiter(Config{RequestsPerHour: 150, Burst: 2, Enabled: true})

	l.Allow("meta")
	l.Allow("meta")
	if d := l.Allow("meta"); d.Allowed {
		t.Fatal("bucket should be empty")
	}

	l.Reset("meta")
	if d := l.Allow("meta"); !d.Allowed {
		t.Fatal("request after Reset should be allowed")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(Config{RequestsPerHour: 1, Burst: 100, Enabled: true})

	done := make(chan int)
	for i := 0; i < 10; i++ {
		go func() {
			allowed := 0
			for j := 0; j < 20; j++ {
				if l.Allow("meta").Allowed {
					allowed++
				}
			}
			done <- allowed
		}()
	}

	total := 0
	for i := 0; i < 10; i++ {
		total += <-done
	}

	// 200 попыток на бакет в 100 токенов: ровно 100 должны пройти
	if total != 100 {
		t.Errorf("allowed = %d, want exactly 100 (no double-spend)", total)
	}
}
