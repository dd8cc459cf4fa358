package registry

import (
	"testing"
	"time"
)

func TestStartAndFinalizeExactlyOnce(t *testing.T) {
	r := New()
	start := time.Unix(1700000000, 0)
	r.StartCall("CA1", DirectionInbound, "+15550001", "", start)

	rec, ok := r.Lookup("CA1")
	if !ok || rec.Status != StatusInProgress {
		t.Fatalf("expected in-progress record, got %+v ok=%v", rec, ok)
	}

	end := start.Add(30 * time.Second)
	if !r.FinalizeCall("CA1", end) {
		t.Fatalf("expected first finalize to succeed")
	}
	if r.FinalizeCall("CA1", end.Add(time.Minute)) {
		t.Fatalf("expected second finalize to be a no-op")
	}
	rec, _ = r.Lookup("CA1")
	if rec.Status != StatusCompleted || !rec.EndTime.Equal(end) {
		t.Fatalf("expected completed at %v, got %+v", end, rec)
	}
}

func TestDuplicateStartKeepsOriginal(t *testing.T) {
	r := New()
	start := time.Unix(1700000000, 0)
	r.StartCall("CA1", DirectionInbound, "+15550001", "", start)
	r.StartCall("CA1", DirectionOutbound, "+15559999", "+15550002", start.Add(time.Second))
	rec, _ := r.Lookup("CA1")
	if rec.Direction != DirectionInbound {
		t.Fatalf("expected original record preserved, got %+v", rec)
	}
	if len(r.History()) != 1 {
		t.Fatalf("expected exactly one record per call id")
	}
}

func TestFinalizeUnknownCall(t *testing.T) {
	r := New()
	if r.FinalizeCall("missing", time.Now()) {
		t.Fatalf("expected finalize of unknown call to fail")
	}
}

func TestTranscriptAppendOrder(t *testing.T) {
	r := New()
	now := time.Unix(1700000000, 0)
	r.AppendTranscript("CA1", TranscriptEntry{Role: RoleFarmer, Text: "wheat price", Language: "hi-IN", Timestamp: now})
	r.AppendTranscript("CA1", TranscriptEntry{Role: RoleAgent, Text: "2200 per quintal", Language: "en-IN", Timestamp: now.Add(time.Second)})

	entries := r.Transcript("CA1")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != RoleFarmer || entries[1].Role != RoleAgent {
		t.Fatalf("expected farmer then agent, got %v then %v", entries[0].Role, entries[1].Role)
	}
	if len(r.Transcript("other")) != 0 {
		t.Fatalf("expected empty transcript for unknown call")
	}
}

func TestHistoryOrder(t *testing.T) {
	r := New()
	base := time.Unix(1700000000, 0)
	for i, id := range []string{"CA1", "CA2", "CA3"} {
		r.StartCall(id, DirectionInbound, "", "", base.Add(time.Duration(i)*time.Minute))
	}
	hist := r.History()
	if len(hist) != 3 || hist[0].CallID != "CA1" || hist[2].CallID != "CA3" {
		t.Fatalf("expected creation order, got %+v", hist)
	}
}
