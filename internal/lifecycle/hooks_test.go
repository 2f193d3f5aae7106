package lifecycle

import (
	"errors"
	"slices"
	"sync"
	"testing"
)

func TestFireOrder(t *testing.T) {
	h := New()
	var got []string
	h.On(ContentOutputGenerated, func(ev *Event) error {
		got = append(got, "first")
		ev.Output = append(ev.Output, '1')
		return nil
	})
	h.On(ContentOutputGenerated, func(ev *Event) error {
		got = append(got, "second")
		ev.Output = append(ev.Output, '2')
		return nil
	})
	h.On(SiteWriteStarted, func(*Event) error {
		got = append(got, "other phase")
		return nil
	})

	ev := &Event{Output: []byte("x")}
	if err := h.Fire(ContentOutputGenerated, ev); err != nil {
		t.Fatalf("Fire() error: %v", err)
	}
	if want := []string{"first", "second"}; !slices.Equal(got, want) {
		t.Errorf("handlers ran %v, want %v", got, want)
	}
	if string(ev.Output) != "x12" {
		t.Errorf("Output = %q, want %q", ev.Output, "x12")
	}
}

func TestFireStopsOnError(t *testing.T) {
	h := New()
	boom := errors.New("boom")
	ran := false
	h.On(ThemeLoaded, func(*Event) error { return boom })
	h.On(ThemeLoaded, func(*Event) error {
		ran = true
		return nil
	})

	err := h.Fire(ThemeLoaded, &Event{})
	if !errors.Is(err, boom) {
		t.Fatalf("Fire() error = %v, want %v", err, boom)
	}
	if ran {
		t.Error("handler after the failing one should not run")
	}
}

func TestFireNoHandlers(t *testing.T) {
	if err := New().Fire(PluginsInitialized, &Event{}); err != nil {
		t.Errorf("Fire() error = %v", err)
	}
}

func TestConcurrentFire(t *testing.T) {
	h := New()
	var mu sync.Mutex
	count := 0
	h.On(ContentGenerationStarted, func(*Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Fire(ContentGenerationStarted, &Event{})
		}()
	}
	wg.Wait()
	if count != 20 {
		t.Errorf("count = %d, want 20", count)
	}
	if h.Len(ContentGenerationStarted) != 1 {
		t.Errorf("Len() = %d", h.Len(ContentGenerationStarted))
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{PluginsInitialized, "plugins-initialized"},
		{ThemeLoaded, "theme-loaded"},
		{SiteWriteStarted, "site-write-started"},
		{ContentGenerationStarted, "content-generation-started"},
		{ContentOutputGenerated, "content-output-generated"},
		{Phase(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(tt.p), got, tt.want)
		}
	}
}
