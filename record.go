package main

import (
	"encoding/json"
	"strconv"
	"time"
)

// Choices a player can submit for the active pairing. ChoiceNone marks a
// round still waiting on this side.
const (
	ChoiceNone      = "none"
	ChoiceCooperate = "cooperate"
	ChoiceBetray    = "betray"
)

func validChoice(choice string) bool {
	return choice == ChoiceCooperate || choice == ChoiceBetray
}

// Rewards is the payoff matrix. A lone defector gains Betray while the
// betrayed cooperator loses Cooperate; the symmetric cases apply the same
// delta to both sides. One snapshot of this struct is taken per round so a
// concurrent change can never split a settlement.
type Rewards struct {
	BothCooperate int `json:"bothCooperate"`
	BothBetray    int `json:"bothBetray"`
	Betray        int `json:"betray"`
	Cooperate     int `json:"cooperate"`
}

// payoff returns the score deltas for the ordered pair of choices.
func (rw Rewards) payoff(mine, theirs string) int {
	switch {
	case mine == ChoiceCooperate && theirs == ChoiceCooperate:
		return rw.BothCooperate
	case mine == ChoiceBetray && theirs == ChoiceBetray:
		return rw.BothBetray
	case mine == ChoiceBetray:
		return rw.Betray
	default:
		return -rw.Cooperate
	}
}

// HistoryEntry records one submitted choice: the round it belonged to, the
// player's score before settlement, and the payoff matrix in effect at
// submission time.
type HistoryEntry struct {
	Round   int       `json:"round"`
	Choice  string    `json:"choice"`
	Score   int       `json:"score"`
	Time    time.Time `json:"time"`
	Rewards Rewards   `json:"rewards"`
}

// PlayerRecord is the identity and progress of one player across sessions.
// Score and TotalGames survive disconnects and game ends; CurrentRound,
// History, and PendingChoice are reset when a game attempt terminates.
type PlayerRecord struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Score         int            `json:"score"`
	History       []HistoryEntry `json:"history"`
	CurrentRound  int            `json:"currentRound"`
	PendingChoice string         `json:"pendingChoice"`
	TotalGames    int            `json:"totalGames"`
}

// appendHistory adds an entry, dropping the oldest when the ring bound is
// reached.
func (p *PlayerRecord) appendHistory(entry HistoryEntry, limit int) {
	p.History = append(p.History, entry)
	if len(p.History) > limit {
		p.History = p.History[len(p.History)-limit:]
	}
}

// snapshot returns a copy safe to hand to another goroutine; the history
// slice is duplicated so later mutations cannot race a pending write.
func (p *PlayerRecord) snapshot() PlayerRecord {
	out := *p
	out.History = append([]HistoryEntry(nil), p.History...)
	return out
}

// storedRecord is the durable layout, keyed by player ID. Every numeric
// field is stored as text and parsed on read, defaulting when absent or
// corrupt, so the same shape works as a redis hash and a bolt JSON value.
type storedRecord struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Score         string `json:"score"`
	History       string `json:"history"`
	CurrentRound  string `json:"currentRound"`
	PendingChoice string `json:"pendingChoice"`
	TotalGames    string `json:"totalGames"`
	UpdatedAt     string `json:"updatedAt"`
}

func encodeRecord(p *PlayerRecord) storedRecord {
	history, err := json.Marshal(p.History)
	if err != nil {
		history = []byte("[]")
	}

	return storedRecord{
		ID:            p.ID,
		Name:          p.Name,
		Score:         strconv.Itoa(p.Score),
		History:       string(history),
		CurrentRound:  strconv.Itoa(p.CurrentRound),
		PendingChoice: p.PendingChoice,
		TotalGames:    strconv.Itoa(p.TotalGames),
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
}

func decodeRecord(sr storedRecord, initialScore int) *PlayerRecord {
	p := &PlayerRecord{
		ID:            sr.ID,
		Name:          sr.Name,
		Score:         parseIntField(sr.Score, initialScore),
		CurrentRound:  parseIntField(sr.CurrentRound, 0),
		PendingChoice: sr.PendingChoice,
		TotalGames:    parseIntField(sr.TotalGames, 0),
	}

	if !validChoice(p.PendingChoice) {
		p.PendingChoice = ChoiceNone
	}

	if sr.History != "" {
		if err := json.Unmarshal([]byte(sr.History), &p.History); err != nil {
			p.History = nil
		}
	}

	return p
}

func parseIntField(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// fields flattens a stored record into the hash layout used by the redis
// store.
func (sr storedRecord) fields() map[string]string {
	return map[string]string{
		"id":            sr.ID,
		"name":          sr.Name,
		"score":         sr.Score,
		"history":       sr.History,
		"currentRound":  sr.CurrentRound,
		"pendingChoice": sr.PendingChoice,
		"totalGames":    sr.TotalGames,
		"updatedAt":     sr.UpdatedAt,
	}
}

func recordFromFields(fields map[string]string) storedRecord {
	return storedRecord{
		ID:            fields["id"],
		Name:          fields["name"],
		Score:         fields["score"],
		History:       fields["history"],
		CurrentRound:  fields["currentRound"],
		PendingChoice: fields["pendingChoice"],
		TotalGames:    fields["totalGames"],
		UpdatedAt:     fields["updatedAt"],
	}
}
