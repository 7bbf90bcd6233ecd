package state

import "testing"

func TestHintFor(t *testing.T) {
	tests := []struct {
		count int
		want  HintLevel
	}{
		{0, HintNone},
		{1, HintWeak},
		{2, HintMedium},
		{3, HintMedium},
		{4, HintStrong},
		{7, HintStrong},
		{-1, HintNone},
	}
	for _, tt := range tests {
		if got := HintFor(tt.count); got != tt.want {
			t.Errorf("HintFor(%d) = %s, want %s", tt.count, got, tt.want)
		}
	}
}

func TestNormalizeSignature(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Open the door", "open the door"},
		{"  OPEN   the\tdoor ", "open the door"},
		{"Straße", "strasse"},
		{"ｏｐｅｎ", "open"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeSignature(tt.in); got != tt.want {
			t.Errorf("NormalizeSignature(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecordAttempt(t *testing.T) {
	m := NewManager(nil, nil)

	m.RecordAttempt("open door")
	if m.World.StuckCount != 0 {
		t.Fatalf("first attempt: stuck = %d, want 0", m.World.StuckCount)
	}

	m.RecordAttempt("Open  Door")
	m.RecordAttempt("open door")
	if m.World.StuckCount != 2 {
		t.Fatalf("after repeats: stuck = %d, want 2", m.World.StuckCount)
	}
	if m.Hint() != HintMedium {
		t.Errorf("Hint() = %s, want medium", m.Hint())
	}

	// A different unproductive action does not reset the count.
	m.RecordAttempt("look around")
	if m.World.StuckCount != 2 {
		t.Errorf("new action: stuck = %d, want 2", m.World.StuckCount)
	}

	m.RecordProgress()
	if m.World.StuckCount != 0 || m.World.LastAction != "" {
		t.Errorf("after progress: stuck = %d, last = %q", m.World.StuckCount, m.World.LastAction)
	}
}
