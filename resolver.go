package main

import (
	"fmt"
	"time"
)

// Round resolution. A pairing is open while at least one side's pending
// choice is "none"; the second submission settles it in the same critical
// section, so exactly one settlement happens per completed round.

// Choice records the caller's choice and, when the opponent has already
// chosen, settles the round.
func (s *Session) Choice(connID, choice string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validChoice(choice) {
		s.fail(connID, fmt.Errorf("%w: choice must be %q or %q", errValidation, ChoiceCooperate, ChoiceBetray))
		return
	}

	id, ok := s.registry.boundID(connID)
	if !ok {
		s.fail(connID, errNotLoggedIn)
		return
	}

	opponent, ok := s.table.opponentOf(id)
	if !ok {
		s.fail(connID, errNoOpponent)
		return
	}

	rec, err := s.registry.get(s.ctx, id)
	if err != nil {
		s.fail(connID, err)
		return
	}
	// A round accepts one choice per side; a resubmission would duplicate the
	// provisional history entry.
	if rec.PendingChoice != ChoiceNone {
		s.fail(connID, fmt.Errorf("%w: choice already submitted for this round", errValidation))
		return
	}

	// One snapshot of the payoff matrix covers both the provisional history
	// entry and, if this submission settles the round, the scoring.
	rewards := s.rewards
	now := time.Now()

	if err := s.registry.mutate(s.ctx, id, func(p *PlayerRecord) {
		p.PendingChoice = choice
		p.appendHistory(HistoryEntry{
			Round:   p.CurrentRound,
			Choice:  choice,
			Score:   p.Score,
			Time:    now,
			Rewards: rewards,
		}, s.cfg.historyLimit)
	}); err != nil {
		s.fail(connID, err)
		return
	}

	opponentRec, err := s.registry.get(s.ctx, opponent)
	if err != nil {
		// The counterpart is gone; dissolve the pairing and put the caller
		// back in the queue instead of wedging the round.
		logf(s.cfg, "ERROR: Pairing for %s lost its counterpart %s: %v", id, opponent, err)
		s.table.unpair(id)
		if mErr := s.registry.mutate(s.ctx, id, resetPendingChoice); mErr != nil {
			logf(s.cfg, "STORE: Clearing choice for %s failed: %v", id, mErr)
		}
		s.notify(id, OpponentDisconnectedMessage{
			Type:    "opponentDisconnected",
			Message: "Your opponent is gone. Waiting for a new match.",
		})
		_ = s.queue.enqueue(id)
		s.matchLocked()
		return
	}

	if opponentRec.PendingChoice == ChoiceNone {
		return // round stays open, waiting on the other side
	}

	s.settleLocked(id, opponent, rewards)
}

// settleLocked converts the two pending choices into score deltas, persists
// both sides, notifies them, dissolves the pairing, and decides for each
// side independently whether its game continues.
func (s *Session) settleLocked(idA, idB string, rewards Rewards) {
	recA, errA := s.registry.get(s.ctx, idA)
	recB, errB := s.registry.get(s.ctx, idB)
	if errA != nil || errB != nil {
		logf(s.cfg, "ERROR: Settlement aborted, missing records: %v %v", errA, errB)
		s.table.unpair(idA)
		return
	}

	choiceA, choiceB := recA.PendingChoice, recB.PendingChoice
	nameA, nameB := recA.Name, recB.Name
	deltaA := rewards.payoff(choiceA, choiceB)
	deltaB := rewards.payoff(choiceB, choiceA)

	settle := func(delta int) func(*PlayerRecord) {
		return func(p *PlayerRecord) {
			p.Score += delta
			p.CurrentRound++
			p.PendingChoice = ChoiceNone
		}
	}

	okA := s.persistSettlement(idA, settle(deltaA))
	okB := s.persistSettlement(idB, settle(deltaB))

	if okA {
		s.notify(idA, RoundCompleteMessage{
			Type:           "roundComplete",
			Score:          deltaA,
			TotalScore:     recA.Score,
			OpponentChoice: choiceB,
			OpponentName:   nameB,
		})
	}
	if okB {
		s.notify(idB, RoundCompleteMessage{
			Type:           "roundComplete",
			Score:          deltaB,
			TotalScore:     recB.Score,
			OpponentChoice: choiceA,
			OpponentName:   nameA,
		})
	}

	logf(s.cfg, "GAME: Round settled between %q (%s, %+d) and %q (%s, %+d)",
		nameA, choiceA, deltaA, nameB, choiceB, deltaB)

	s.table.unpair(idA)

	// Termination is evaluated per participant; the check must not assume
	// both sides reach the bound together.
	if okA {
		s.continueOrEndLocked(idA)
	}
	if okB {
		s.continueOrEndLocked(idB)
	}

	s.matchLocked()
}

// persistSettlement applies the settlement mutation. A failed write means
// that side gets an error instead of a round result; the client saw no
// confirmation and may retry by rejoining.
func (s *Session) persistSettlement(id string, fn func(*PlayerRecord)) bool {
	if err := s.registry.mutate(s.ctx, id, fn); err != nil {
		s.failPlayer(id, err)
		return false
	}
	return true
}

// continueOrEndLocked re-queues a live player whose game goes on, or ends
// the game attempt when the score floor or round ceiling is hit.
func (s *Session) continueOrEndLocked(id string) {
	rec, err := s.registry.get(s.ctx, id)
	if err != nil {
		return
	}

	var reason string
	switch {
	case rec.Score <= s.cfg.minScore:
		reason = "score exhausted"
	case rec.CurrentRound >= s.cfg.maxRounds:
		reason = "round limit reached"
	default:
		if s.live(id) {
			_ = s.queue.enqueue(id)
		}
		return
	}

	// Build the farewell from the pre-reset state, persist the reset, then
	// notify; the reply must not precede the durable write.
	final := rec.snapshot()

	if err := s.registry.mutate(s.ctx, id, func(p *PlayerRecord) {
		p.CurrentRound = 0
		p.History = nil
		p.PendingChoice = ChoiceNone
	}); err != nil {
		s.failPlayer(id, err)
		return
	}

	logf(s.cfg, "GAME: Game over for %q: %s (score %d after %d rounds)",
		final.Name, reason, final.Score, final.CurrentRound)

	s.notify(id, GameEndMessage{
		Type:       "gameEnd",
		FinalScore: final.Score,
		History:    final.History,
		Rounds:     final.CurrentRound,
		Message:    reason,
	})

	s.queue.remove(id)
}
