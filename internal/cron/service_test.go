package cron

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	return NewService(path), path
}

func startService(t *testing.T, s *Service) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Start(ctx) }()
	// Give Start() a moment to arm timers.
	time.Sleep(20 * time.Millisecond)
	return cancel
}

// ─── AddJob ────────────────────────────────────────────────────────────────

func TestAddJob_Every(t *testing.T) {
	s, _ := newTestService(t)
	job, err := s.AddJob(JobSpec{Name: "tick", Goal: "check the queue", Kind: "every", EveryMs: 5000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected non-empty id")
	}
	jobs := s.ListAllJobs(false)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Schedule.Kind != "every" {
		t.Errorf("expected kind=every, got %q", jobs[0].Schedule.Kind)
	}
	if jobs[0].Schedule.EveryMs == nil || *jobs[0].Schedule.EveryMs != 5000 {
		t.Errorf("unexpected everyMs: %v", jobs[0].Schedule.EveryMs)
	}
	if jobs[0].Payload.Kind != "run_goal" || jobs[0].Payload.Goal != "check the queue" {
		t.Errorf("unexpected payload: %+v", jobs[0].Payload)
	}
}

func TestAddJob_At(t *testing.T) {
	s, _ := newTestService(t)
	futureMs := time.Now().Add(time.Hour).UnixMilli()
	job, err := s.AddJob(JobSpec{Name: "once", Goal: "do it", Kind: "at", AtMs: futureMs, DeleteAfterRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs := s.ListAllJobs(false)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].ID != job.ID {
		t.Errorf("id mismatch: got %q", jobs[0].ID)
	}
	if !jobs[0].DeleteAfterRun {
		t.Error("expected deleteAfterRun=true")
	}
}

func TestAddJob_Cron(t *testing.T) {
	s, _ := newTestService(t)
	job, err := s.AddJob(JobSpec{Name: "daily", Goal: "build the report", Kind: "cron", CronExpr: "0 9 * * *", TZ: "UTC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs := s.ListAllJobs(false)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].ID != job.ID {
		t.Errorf("id mismatch")
	}
	if jobs[0].State.NextRunAtMs == nil {
		t.Error("expected computed next run for cron schedule")
	}
}

func TestAddJob_Invalid(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.AddJob(JobSpec{Name: "bad", Goal: "g", Kind: "weekly"}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := s.AddJob(JobSpec{Name: "bad", Goal: "g", Kind: "every"}); err == nil {
		t.Error("expected error for missing interval")
	}
	if _, err := s.AddJob(JobSpec{Name: "bad", Kind: "every", EveryMs: 1000}); err == nil {
		t.Error("expected error for missing goal")
	}
}

// ─── RemoveJob / EnableJob ─────────────────────────────────────────────────

func TestRemoveJob(t *testing.T) {
	s, _ := newTestService(t)
	job, _ := s.AddJob(JobSpec{Name: "job", Goal: "g", Kind: "every", EveryMs: 1000})
	if !s.RemoveJob(job.ID) {
		t.Fatal("expected RemoveJob to return true")
	}
	if len(s.ListAllJobs(false)) != 0 {
		t.Error("expected empty job list after remove")
	}
	if s.RemoveJob("nonexistent") {
		t.Error("expected RemoveJob to return false for unknown id")
	}
}

func TestEnableJob(t *testing.T) {
	s, _ := newTestService(t)
	job, _ := s.AddJob(JobSpec{Name: "job", Goal: "g", Kind: "every", EveryMs: 1000})

	disabled, ok := s.EnableJob(job.ID, false)
	if !ok {
		t.Fatal("expected job found")
	}
	if disabled.Enabled {
		t.Error("expected disabled")
	}
	if disabled.State.NextRunAtMs != nil {
		t.Error("expected cleared next run for disabled job")
	}
	if len(s.ListAllJobs(false)) != 0 {
		t.Error("expected disabled job hidden from enabled listing")
	}
	if len(s.ListAllJobs(true)) != 1 {
		t.Error("expected disabled job visible with includeDisabled")
	}

	enabled, _ := s.EnableJob(job.ID, true)
	if !enabled.Enabled || enabled.State.NextRunAtMs == nil {
		t.Error("expected re-enabled job with next run")
	}
}

// ─── Execution ─────────────────────────────────────────────────────────────

func TestEveryJobFires(t *testing.T) {
	s, _ := newTestService(t)
	var fired atomic.Int32
	s.SetOnJob(func(_ context.Context, job Job) (string, error) {
		if job.Payload.Goal != "ping" {
			t.Errorf("unexpected goal: %q", job.Payload.Goal)
		}
		fired.Add(1)
		return "done", nil
	})
	if _, err := s.AddJob(JobSpec{Name: "fast", Goal: "ping", Kind: "every", EveryMs: 30}); err != nil {
		t.Fatal(err)
	}

	cancel := startService(t, s)
	defer cancel()
	time.Sleep(120 * time.Millisecond)

	if fired.Load() < 2 {
		t.Errorf("expected at least 2 firings, got %d", fired.Load())
	}
}

func TestRunJob_Manual(t *testing.T) {
	s, _ := newTestService(t)
	var fired atomic.Int32
	s.SetOnJob(func(context.Context, Job) (string, error) {
		fired.Add(1)
		return "ok", nil
	})
	job, _ := s.AddJob(JobSpec{Name: "manual", Goal: "g", Kind: "every", EveryMs: 60000})

	if !s.RunJob(context.Background(), job.ID, false) {
		t.Fatal("expected RunJob to find the job")
	}
	if fired.Load() != 1 {
		t.Errorf("expected 1 firing, got %d", fired.Load())
	}

	s.EnableJob(job.ID, false)
	if s.RunJob(context.Background(), job.ID, false) {
		t.Error("expected disabled job not to run without force")
	}
	if !s.RunJob(context.Background(), job.ID, true) {
		t.Error("expected force to run disabled job")
	}
}

func TestOneShotJobDisablesAfterRun(t *testing.T) {
	s, _ := newTestService(t)
	s.SetOnJob(func(context.Context, Job) (string, error) { return "ok", nil })
	futureMs := time.Now().Add(time.Hour).UnixMilli()
	job, _ := s.AddJob(JobSpec{Name: "once", Goal: "g", Kind: "at", AtMs: futureMs})

	s.RunJob(context.Background(), job.ID, true)
	jobs := s.ListAllJobs(true)
	if len(jobs) != 1 {
		t.Fatalf("expected job kept, got %d", len(jobs))
	}
	if jobs[0].Enabled {
		t.Error("expected one-shot job disabled after run")
	}
}

func TestOneShotDeleteAfterRun(t *testing.T) {
	s, _ := newTestService(t)
	s.SetOnJob(func(context.Context, Job) (string, error) { return "ok", nil })
	futureMs := time.Now().Add(time.Hour).UnixMilli()
	job, _ := s.AddJob(JobSpec{Name: "once", Goal: "g", Kind: "at", AtMs: futureMs, DeleteAfterRun: true})

	s.RunJob(context.Background(), job.ID, true)
	if len(s.ListAllJobs(true)) != 0 {
		t.Error("expected job deleted after run")
	}
}

// ─── Persistence ───────────────────────────────────────────────────────────

func TestPersistenceAcrossServices(t *testing.T) {
	s, path := newTestService(t)
	job, _ := s.AddJob(JobSpec{Name: "persist", Goal: "survive restart", Kind: "every", EveryMs: 5000})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var store struct {
		Version int   `json:"version"`
		Jobs    []Job `json:"jobs"`
	}
	if err := json.Unmarshal(data, &store); err != nil {
		t.Fatalf("parse store: %v", err)
	}
	if store.Version != 1 || len(store.Jobs) != 1 {
		t.Fatalf("unexpected store: version=%d jobs=%d", store.Version, len(store.Jobs))
	}

	reloaded := NewService(path)
	jobs := reloaded.ListAllJobs(true)
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Fatalf("expected job to survive reload, got %v", jobs)
	}
	if jobs[0].Payload.Goal != "survive restart" {
		t.Errorf("unexpected goal after reload: %q", jobs[0].Payload.Goal)
	}
}

func TestFailedJobRecordsError(t *testing.T) {
	s, _ := newTestService(t)
	s.SetOnJob(func(context.Context, Job) (string, error) {
		return "", os.ErrDeadlineExceeded
	})
	job, _ := s.AddJob(JobSpec{Name: "fails", Goal: "g", Kind: "every", EveryMs: 60000})

	s.RunJob(context.Background(), job.ID, false)
	jobs := s.ListAllJobs(true)
	if jobs[0].State.LastStatus == nil || *jobs[0].State.LastStatus != "error" {
		t.Errorf("expected error status, got %v", jobs[0].State.LastStatus)
	}
	if jobs[0].State.LastError == nil {
		t.Error("expected last error recorded")
	}
}
