package types

import (
	"sync"
	"testing"
)

var testKey = []byte("la6YsO+bNX/+XIkOqc5Svw==")[:16]

func TestUidGeneratorGet(t *testing.T) {
	var ug UidGenerator
	if err := ug.Init(1, testKey); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	uid1 := ug.Get()
	uid2 := ug.Get()
	if uid1.IsZero() || uid2.IsZero() {
		t.Fatal("Get returned zero uid")
	}
	if uid1 == uid2 {
		t.Errorf("Get returned duplicate uids: %v", uid1)
	}
}

func TestUidGeneratorUninitialised(t *testing.T) {
	var ug UidGenerator
	if uid := ug.Get(); !uid.IsZero() {
		t.Errorf("expected zero uid, got %v", uid)
	}
	if s := ug.GetStr(); s != "" {
		t.Errorf("expected empty string, got '%s'", s)
	}
}

func TestUidGeneratorGetStr(t *testing.T) {
	var ug UidGenerator
	if err := ug.Init(1, testKey); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	s := ug.GetStr()
	if len(s) != uidBase64Unpadded {
		t.Fatalf("GetStr length = %d, want %d", len(s), uidBase64Unpadded)
	}
	if ParseUid(s).IsZero() {
		t.Errorf("GetStr result '%s' does not parse as Uid", s)
	}
}

func TestUidGeneratorInitShortKey(t *testing.T) {
	var ug UidGenerator
	if err := ug.Init(1, []byte("short")); err == nil {
		t.Error("expected error for short key")
	}
	if ug.cipher != nil || ug.seq != nil {
		t.Error("failed Init must not leave generator half-initialised")
	}
}

func TestUidGeneratorInitIdempotent(t *testing.T) {
	var ug UidGenerator
	if err := ug.Init(1, testKey); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	seq, cipher := ug.seq, ug.cipher
	if err := ug.Init(2, testKey); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if ug.seq != seq || ug.cipher != cipher {
		t.Error("second Init replaced generator state")
	}
}

func TestUidGeneratorConcurrency(t *testing.T) {
	var ug UidGenerator
	if err := ug.Init(1, testKey); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	const workers, perWorker = 8, 200
	var mu sync.Mutex
	seen := make(map[Uid]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				uid := ug.Get()
				mu.Lock()
				if seen[uid] {
					t.Errorf("duplicate uid %v", uid)
				}
				seen[uid] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
