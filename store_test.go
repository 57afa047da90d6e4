package pubstatic

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "cache", "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
}

func TestPutAndGetImage(t *testing.T) {
	s := setupTestStore(t)

	data := []byte{0x89, 'P', 'N', 'G'}
	if err := s.PutImage("abc123", "png", 400, 300, data); err != nil {
		t.Fatalf("PutImage failed: %v", err)
	}

	got, err := s.GetImage("abc123", "png", 400)
	if err != nil {
		t.Fatalf("GetImage failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data = %v, want %v", got, data)
	}
}

func TestPutImageReplaces(t *testing.T) {
	s := setupTestStore(t)

	if err := s.PutImage("abc123", "jpeg", 400, 300, []byte("old")); err != nil {
		t.Fatalf("PutImage failed: %v", err)
	}
	if err := s.PutImage("abc123", "jpeg", 400, 300, []byte("new")); err != nil {
		t.Fatalf("PutImage failed: %v", err)
	}
	got, err := s.GetImage("abc123", "jpeg", 400)
	if err != nil {
		t.Fatalf("GetImage failed: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("data = %q, want %q", got, "new")
	}
}

func TestGetImageMiss(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetImage("missing", "png", 100)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
	if !isNoRows(err) {
		t.Error("isNoRows should report a cache miss")
	}
}

func TestImageKeyIncludesFormatAndWidth(t *testing.T) {
	s := setupTestStore(t)

	if err := s.PutImage("h", "png", 100, 50, []byte("png-100")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetImage("h", "jpeg", 100); !isNoRows(err) {
		t.Errorf("other format should miss, got %v", err)
	}
	if _, err := s.GetImage("h", "png", 200); !isNoRows(err) {
		t.Errorf("other width should miss, got %v", err)
	}
}

func TestPruneImages(t *testing.T) {
	s := setupTestStore(t)

	if err := s.PutImage("h", "png", 100, 50, []byte("x")); err != nil {
		t.Fatal(err)
	}
	n, err := s.PruneImages(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PruneImages failed: %v", err)
	}
	if n != 0 {
		t.Errorf("pruned %d fresh variants, want 0", n)
	}

	n, err = s.PruneImages(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneImages failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if _, err := s.GetImage("h", "png", 100); !isNoRows(err) {
		t.Errorf("variant should be gone, got %v", err)
	}
}

func TestRecordAndListBuilds(t *testing.T) {
	s := setupTestStore(t)

	start := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		res := &BuildResult{
			ID:           fmt.Sprintf("build-%d", i),
			Mode:         RunModeBuild,
			StartedAt:    start.Add(time.Duration(i) * time.Minute),
			Duration:     1500 * time.Millisecond,
			PagesWritten: 10 + i,
			Excluded:     []string{"blog/draft.md"},
			FilesCopied:  2,
		}
		var buildErr error
		if i == 2 {
			buildErr = errors.New("boom")
		}
		if err := s.RecordBuild(res, buildErr); err != nil {
			t.Fatalf("RecordBuild failed: %v", err)
		}
	}

	builds, err := s.ListBuilds(2)
	if err != nil {
		t.Fatalf("ListBuilds failed: %v", err)
	}
	if len(builds) != 2 {
		t.Fatalf("got %d builds, want 2", len(builds))
	}
	newest := builds[0]
	if newest.ID != "build-2" {
		t.Errorf("newest = %q, want build-2", newest.ID)
	}
	if newest.Error != "boom" {
		t.Errorf("error = %q, want boom", newest.Error)
	}
	if newest.PagesWritten != 12 || newest.Excluded != 1 || newest.FilesCopied != 2 {
		t.Errorf("unexpected counts: %+v", newest)
	}
	if newest.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", newest.Duration)
	}
	if !newest.StartedAt.Equal(start.Add(2 * time.Minute)) {
		t.Errorf("started = %v", newest.StartedAt)
	}
	if builds[1].Error != "" {
		t.Errorf("successful build has error %q", builds[1].Error)
	}
}

func TestListBuildsEmpty(t *testing.T) {
	s := setupTestStore(t)

	builds, err := s.ListBuilds(0)
	if err != nil {
		t.Fatalf("ListBuilds failed: %v", err)
	}
	if len(builds) != 0 {
		t.Errorf("got %d builds, want 0", len(builds))
	}
}
