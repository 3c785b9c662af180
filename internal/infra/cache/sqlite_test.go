package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db := NewDB(filepath.Join(t.TempDir(), "sub", "lookups.db"))
	if err := db.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_PutGet(t *testing.T) {
	db := openTestDB(t)

	images := collage.ImageVariantSet{
		{Size: collage.SizeLarge, URL: "https://img/l.jpg"},
		{Size: collage.SizeExtraLarge, URL: "https://img/xl.jpg"},
	}
	if err := db.Put("k1", images, time.Hour); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := db.Get("k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if len(entry.Images) != 2 || entry.Images[1].URL != "https://img/xl.jpg" {
		t.Errorf("unexpected images %+v", entry.Images)
	}

	missing, err := db.Get("nope")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v", missing, err)
	}
}

func TestDB_Expiry(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	if err := db.Put("k", collage.ImageVariantSet{{Size: collage.SizeSmall, URL: "s"}}, time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	entry, _ := db.Get("k")
	if entry == nil {
		t.Fatal("expected fresh entry")
	}
	if !entry.FetchedAt.Equal(now) || !entry.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Errorf("FetchedAt/ExpiresAt = %v/%v", entry.FetchedAt, entry.ExpiresAt)
	}

	now = now.Add(2 * time.Minute)
	if entry, _ := db.Get("k"); entry != nil {
		t.Errorf("expected expired entry to be hidden, got %+v", entry)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Entries != 1 || stats.Expired != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	removed, err := db.Prune()
	if err != nil || removed != 1 {
		t.Errorf("Prune = %d, %v", removed, err)
	}
}

func TestDB_PutOverwrites(t *testing.T) {
	db := openTestDB(t)

	db.Put("k", collage.ImageVariantSet{{Size: collage.SizeSmall, URL: "old"}}, time.Hour)
	db.Put("k", collage.ImageVariantSet{{Size: collage.SizeSmall, URL: "new"}}, time.Hour)

	entry, err := db.Get("k")
	if err != nil || entry == nil {
		t.Fatalf("Get = %v, %v", entry, err)
	}
	if entry.Images[0].URL != "new" {
		t.Errorf("expected overwrite, got %q", entry.Images[0].URL)
	}
}

func TestDB_ClosedErrors(t *testing.T) {
	db := NewDB(filepath.Join(t.TempDir(), "x.db"))
	if _, err := db.Get("k"); err == nil {
		t.Error("expected error from unopened db")
	}
	if err := db.Put("k", nil, time.Hour); err == nil {
		t.Error("expected error from unopened db")
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close on unopened db: %v", err)
	}
}

func TestDB_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lookups.db")

	db := NewDB(path)
	if err := db.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	db.Put("k", collage.ImageVariantSet{{Size: collage.SizeMedium, URL: "m"}}, time.Hour)
	db.Close()

	db = NewDB(path)
	if err := db.Open(); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	if entry, err := db.Get("k"); err != nil || entry == nil {
		t.Errorf("expected entry after reopen, got %v, %v", entry, err)
	}
}
