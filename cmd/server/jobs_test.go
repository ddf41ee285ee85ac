package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeReaper struct {
	ttl   time.Duration
	calls int
	err   error
}

func (f *fakeReaper) ReapAbandoned(_ context.Context, ttl time.Duration) (int64, error) {
	f.calls++
	f.ttl = ttl
	return 2, f.err
}

type fakePurger struct{ calls int }

func (f *fakePurger) PurgeRevoked(context.Context) (int64, error) {
	f.calls++
	return 1, nil
}

func TestHousekeepingRunsBothJobs(t *testing.T) {
	r, p := &fakeReaper{err: errors.New("db down")}, &fakePurger{}
	housekeeping(context.Background(), 72*time.Hour, r, p)
	if r.calls != 1 || r.ttl != 72*time.Hour {
		t.Fatalf("reaper not called with ttl: %+v", r)
	}
	if p.calls != 1 {
		t.Fatalf("purge must run even when reaping fails")
	}
}

func TestStartJobsRejectsBadSchedule(t *testing.T) {
	if _, err := startJobs("every tuesday", time.Hour, &fakeReaper{}, &fakePurger{}); err == nil {
		t.Fatalf("expected schedule error")
	}
	c, err := startJobs("@every 1h", time.Hour, &fakeReaper{}, &fakePurger{})
	if err != nil {
		t.Fatalf("startJobs: %v", err)
	}
	<-c.Stop().Done()
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	if err := ensureDir("file:" + dir + "/nested/sts.db?_busy_timeout=5000"); err != nil {
		t.Fatalf("ensureDir: %v", err)
	}
	if fi, err := os.Stat(filepath.Join(dir, "nested")); err != nil || !fi.IsDir() {
		t.Fatalf("nested dir not created: %v", err)
	}
	if err := ensureDir(":memory:"); err != nil {
		t.Fatalf("memory dsn: %v", err)
	}
}
