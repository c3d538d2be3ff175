package report

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/deixis/pkgguard/internal/policy"
	"github.com/deixis/pkgguard/internal/records"
)

func sampleRun() *RunResult {
	return &RunResult{
		ID:         uuid.New().String(),
		Operation:  policy.List,
		ExitCode:   0,
		DurationMs: 1200,
		Packages: []records.PackageRecord{
			{Name: "PowerShell", ID: "Microsoft.PowerShell", InstalledVersion: "7.4.1.0", Source: records.Winget, Operation: policy.List},
			{Name: "PowerToys", ID: "Microsoft.PowerToys", InstalledVersion: "0.78.0", Source: records.Winget, Operation: policy.List},
			{Name: "Git", ID: "Git.Git", InstalledVersion: "2.44.0", Source: records.MSStore, Operation: policy.List},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// countingStore records calls to the backing store.
type countingStore struct {
	runs  map[string]*RunResult
	loads int
}

func (s *countingStore) Save(r *RunResult) error {
	if s.runs == nil {
		s.runs = map[string]*RunResult{}
	}
	s.runs[r.ID] = r
	return nil
}

func (s *countingStore) Load(id string) (*RunResult, error) {
	s.loads++
	if r, ok := s.runs[id]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

func TestByPackage(t *testing.T) {
	run := sampleRun()
	if got := ByPackage(run, "git.git"); len(got) != 1 || got[0].ID != "Git.Git" {
		t.Errorf("ByPackage(git.git) = %v", got)
	}
	if got := ByPackage(run, "Microsoft.*"); len(got) != 2 {
		t.Errorf("ByPackage(Microsoft.*) = %v, want 2", got)
	}
	if got := ByPackage(run, "Microsoft"); len(got) != 0 {
		t.Errorf("ByPackage(Microsoft) = %v, want none", got)
	}
}

func TestBySource(t *testing.T) {
	if got := BySource(sampleRun(), records.MSStore); len(got) != 1 || got[0].ID != "Git.Git" {
		t.Errorf("BySource(msstore) = %v", got)
	}
}

func TestExpect(t *testing.T) {
	run := sampleRun()
	if err := run.Expect(policy.List); err != nil {
		t.Errorf("Expect(list) = %v", err)
	}
	if err := run.Expect(policy.Search); err == nil {
		t.Error("Expect(search) = nil, want error")
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	s := NewDiskStore(filepath.Join(t.TempDir(), "runs"))
	want := sampleRun()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(want.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestDiskStore_LazyTempDir(t *testing.T) {
	s := NewDiskStore("")
	if s.Dir() != "" {
		t.Fatalf("Dir before use = %q, want empty", s.Dir())
	}
	if err := s.Save(sampleRun()); err != nil {
		t.Fatal(err)
	}
	if s.Dir() == "" {
		t.Error("Dir after Save is empty")
	}
}

func TestDiskStore_NotFound(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	_, err := s.Load(uuid.New().String())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDiskStore_RejectsNonIDs(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	for _, id := range []string{"../../etc/passwd", "", "run-1"} {
		if _, err := s.Load(id); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) err = %v, want invalid id", id, err)
		}
	}
	bad := sampleRun()
	bad.ID = "../escape"
	if err := s.Save(bad); err == nil {
		t.Error("Save with path id succeeded")
	}
}

func TestLRUStore_HitsCache(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)
	run := sampleRun()
	if err := s.Save(run); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(run.ID); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0", back.loads)
	}
}

func TestLRUStore_EvictsOldest(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)
	a, b, c := sampleRun(), sampleRun(), sampleRun()
	for _, r := range []*RunResult{a, b} {
		_ = s.Save(r)
	}
	// Touch a so b becomes the eviction candidate.
	_, _ = s.Load(a.ID)
	_ = s.Save(c)

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	_, _ = s.Load(a.ID)
	_, _ = s.Load(c.ID)
	if back.loads != 0 {
		t.Errorf("a and c should be cached, backing loads = %d", back.loads)
	}
	if _, err := s.Load(b.ID); err != nil {
		t.Fatal(err)
	}
	if back.loads != 1 {
		t.Errorf("b should come from backing store, loads = %d", back.loads)
	}
}

func TestLRUStore_MissPropagates(t *testing.T) {
	s := NewLRUStore(1, &countingStore{})
	if _, err := s.Load(uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)
	s, err := NewRedisStore("redis://"+srv.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, srv
}

func TestRedisStore_RoundTrip(t *testing.T) {
	s, srv := newRedisStore(t)
	want := sampleRun()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(want.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
	if ttl := srv.TTL(runKey(want.ID)); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}
}

func TestRedisStore_Expires(t *testing.T) {
	s, srv := newRedisStore(t)
	run := sampleRun()
	if err := s.Save(run); err != nil {
		t.Fatal(err)
	}
	srv.FastForward(2 * time.Hour)
	if _, err := s.Load(run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after TTL", err)
	}
}

func TestNewRedisStore_BadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url", 0); err == nil {
		t.Error("NewRedisStore(bad url) = nil error")
	}
}
