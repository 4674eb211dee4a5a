package scheduler

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestAddAndRunNow(t *testing.T) {
	s := New()
	runs := 0

	if err := s.Every("monthly-helper", time.Minute, func(ctx context.Context) { runs++ }); err != nil {
		t.Fatalf("Every: %v", err)
	}
	if err := s.Every("monthly-helper", time.Minute, func(ctx context.Context) {}); err == nil {
		t.Error("registering the same name twice should fail")
	}
	if err := s.Add("broken", "not a spec", func(ctx context.Context) {}); err == nil {
		t.Error("invalid spec should fail")
	}

	if !s.RunNow("monthly-helper") {
		t.Fatal("RunNow should find the job")
	}
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	if s.RunNow("missing") {
		t.Error("RunNow should report unknown jobs")
	}
}

func TestJobsRecoverFromPanics(t *testing.T) {
	s := New()
	if err := s.Every("boom", time.Hour, func(ctx context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Every: %v", err)
	}
	// must not propagate
	s.RunNow("boom")
}

func TestStopCancelsContext(t *testing.T) {
	s := New()
	var seen context.Context
	_ = s.Every("ctx", time.Hour, func(ctx context.Context) { seen = ctx })
	_ = s.Every("other", time.Hour, func(ctx context.Context) {})

	s.Start()
	s.RunNow("ctx")
	s.Stop()

	if seen == nil || seen.Err() == nil {
		t.Error("job context should be cancelled after Stop")
	}

	names := s.Jobs()
	sort.Strings(names)
	if strings.Join(names, ",") != "ctx,other" {
		t.Errorf("Jobs = %v", names)
	}
}
