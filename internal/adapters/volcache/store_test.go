package volcache

import (
	"testing"
	"time"
)

func TestStoreGetMissing(t *testing.T) {
	s := New(time.Minute)
	if _, _, fresh := s.Get("media_player.office"); fresh {
		t.Fatalf("expected missing entry to be stale")
	}
}

func TestStorePutGet(t *testing.T) {
	s := New(time.Minute)
	s.Put("media_player.office", 0.18, false)

	level, muted, fresh := s.Get("media_player.office")
	if !fresh {
		t.Fatalf("expected fresh entry")
	}
	if level != 0.18 || muted {
		t.Fatalf("got level=%v muted=%v", level, muted)
	}
}

func TestStoreExpiry(t *testing.T) {
	s := New(time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }
	s.Put("media_player.office", 0.5, true)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, _, fresh := s.Get("media_player.office"); fresh {
		t.Fatalf("expected expired entry to be stale")
	}
}

func TestStorePerPlayer(t *testing.T) {
	s := New(time.Minute)
	s.Put("media_player.office", 0.2, false)
	s.Put("media_player.kitchen", 0.7, true)

	level, _, fresh := s.Get("media_player.kitchen")
	if !fresh || level != 0.7 {
		t.Fatalf("kitchen entry lost: level=%v fresh=%v", level, fresh)
	}
}
