package main

import (
	"testing"
	"time"
)

func TestPayoffMatrix(t *testing.T) {
	rw := Rewards{BothCooperate: 5, BothBetray: -3, Betray: 10, Cooperate: 10}

	cases := []struct {
		mine, theirs string
		want         int
	}{
		{ChoiceCooperate, ChoiceCooperate, 5},
		{ChoiceBetray, ChoiceBetray, -3},
		{ChoiceCooperate, ChoiceBetray, -10},
		{ChoiceBetray, ChoiceCooperate, 10},
	}

	for _, tc := range cases {
		if got := rw.payoff(tc.mine, tc.theirs); got != tc.want {
			t.Errorf("payoff(%s, %s) = %d, want %d", tc.mine, tc.theirs, got, tc.want)
		}
	}
}

func TestAppendHistoryRingBound(t *testing.T) {
	p := &PlayerRecord{ID: "p1"}

	for i := 0; i < 30; i++ {
		p.appendHistory(HistoryEntry{Round: i, Choice: ChoiceCooperate}, 20)
		if len(p.History) > 20 {
			t.Fatalf("history exceeded limit after %d entries: %d", i+1, len(p.History))
		}
	}

	if len(p.History) != 20 {
		t.Fatalf("expected 20 entries, got %d", len(p.History))
	}
	if p.History[0].Round != 10 {
		t.Fatalf("expected oldest surviving round 10, got %d", p.History[0].Round)
	}
	if p.History[19].Round != 29 {
		t.Fatalf("expected newest round 29, got %d", p.History[19].Round)
	}
}

func TestRecordCodecRoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	p := &PlayerRecord{
		ID:            "p1",
		Name:          "Alice",
		Score:         87,
		CurrentRound:  3,
		PendingChoice: ChoiceBetray,
		TotalGames:    12,
		History: []HistoryEntry{
			{Round: 2, Choice: ChoiceCooperate, Score: 92, Time: now, Rewards: Rewards{BothCooperate: 5}},
		},
	}

	decoded := decodeRecord(encodeRecord(p), 100)

	if decoded.ID != p.ID || decoded.Name != p.Name {
		t.Fatalf("identity mismatch: %+v", decoded)
	}
	if decoded.Score != 87 || decoded.CurrentRound != 3 || decoded.TotalGames != 12 {
		t.Fatalf("numeric field mismatch: %+v", decoded)
	}
	if decoded.PendingChoice != ChoiceBetray {
		t.Fatalf("expected pending choice %q, got %q", ChoiceBetray, decoded.PendingChoice)
	}
	if len(decoded.History) != 1 || decoded.History[0].Round != 2 {
		t.Fatalf("history mismatch: %+v", decoded.History)
	}
	if !decoded.History[0].Time.Equal(now) {
		t.Fatalf("expected history time %v, got %v", now, decoded.History[0].Time)
	}
}

func TestDecodeRecordDefaultsOnCorruptFields(t *testing.T) {
	decoded := decodeRecord(storedRecord{
		ID:            "p1",
		Name:          "Alice",
		Score:         "not-a-number",
		History:       "{broken",
		CurrentRound:  "",
		PendingChoice: "flee",
		TotalGames:    "7",
	}, 100)

	if decoded.Score != 100 {
		t.Fatalf("expected default score 100, got %d", decoded.Score)
	}
	if decoded.CurrentRound != 0 {
		t.Fatalf("expected default round 0, got %d", decoded.CurrentRound)
	}
	if decoded.PendingChoice != ChoiceNone {
		t.Fatalf("expected pending choice reset to none, got %q", decoded.PendingChoice)
	}
	if decoded.History != nil {
		t.Fatalf("expected corrupt history dropped, got %+v", decoded.History)
	}
	if decoded.TotalGames != 7 {
		t.Fatalf("expected total games 7, got %d", decoded.TotalGames)
	}
}

func TestSnapshotIsolatesHistory(t *testing.T) {
	p := &PlayerRecord{ID: "p1"}
	p.appendHistory(HistoryEntry{Round: 0, Choice: ChoiceCooperate}, 20)

	snap := p.snapshot()
	p.History[0].Choice = ChoiceBetray

	if snap.History[0].Choice != ChoiceCooperate {
		t.Fatal("snapshot history should not alias the live record")
	}
}
