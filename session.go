package main

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session is the tournament coordinator: it owns the registry, the waiting
// queue, and the match table, and is the only entry point for transport
// code. One mutex serializes every mutation, so a player can never be
// queued and paired at the same instant and a round can never settle twice.
// Outbound messages go through the send callback, which must not block.
type Session struct {
	ctx  context.Context
	cfg  *Config
	send func(connID string, msg any)

	mu       sync.Mutex
	registry *Registry
	queue    *matchQueue
	table    *matchTable
	rewards  Rewards

	// turnTimeout is an extension point: zero means a pairing waits on the
	// slower side forever. No timer is armed yet.
	turnTimeout time.Duration
}

func newSession(ctx context.Context, cfg *Config, store RecordStore, send func(connID string, msg any)) *Session {
	return &Session{
		ctx:         ctx,
		cfg:         cfg,
		send:        send,
		registry:    newRegistry(store, cfg.initialScore),
		queue:       newMatchQueue(),
		table:       newMatchTable(),
		rewards:     cfg.rewards(),
		turnTimeout: cfg.turnTimeout,
	}
}

// SetRewards swaps the payoff matrix for subsequent rounds. Rounds already
// settling keep the snapshot they took.
func (s *Session) SetRewards(rw Rewards) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rewards = rw
}

// Login binds the connection to a new or rehydrated player record.
func (s *Session) Login(connID, playerID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, isNew, err := s.registry.login(s.ctx, connID, playerID, name)
	if err != nil {
		s.fail(connID, err)
		return
	}

	logf(s.cfg, "GAME: Player %q logged in (id %s, new %t)", rec.Name, rec.ID, isNew)

	s.send(connID, LoginSuccessMessage{
		Type:        "loginSuccess",
		PlayerData:  rec.snapshot(),
		IsNewPlayer: isNew,
	})
}

// Join puts the player into the waiting queue and runs a matchmaking pass.
func (s *Session) Join(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.registry.boundID(connID)
	if !ok {
		s.fail(connID, errNotLoggedIn)
		return
	}
	if s.table.paired(id) {
		s.fail(connID, errAlreadyPaired)
		return
	}
	if s.queue.contains(id) {
		s.fail(connID, errAlreadyQueued)
		return
	}

	if err := s.registry.mutate(s.ctx, id, func(p *PlayerRecord) {
		p.TotalGames++
	}); err != nil {
		s.fail(connID, err)
		return
	}

	rec, err := s.registry.get(s.ctx, id)
	if err != nil {
		s.fail(connID, err)
		return
	}

	s.send(connID, GameJoinedMessage{
		Type:          "gameJoined",
		PlayerData:    rec.snapshot(),
		GlobalRewards: s.rewards,
	})

	_ = s.queue.enqueue(id)
	logf(s.cfg, "GAME: Player %q joined the queue (%d waiting)", rec.Name, s.queue.len())

	s.matchLocked()
}

// Disconnect cancels the player's participation: the opponent (if any) is
// told and re-queued, the player leaves the queue, and the in-memory record
// is released after a final flush. Safe to call more than once.
func (s *Session) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.registry.boundID(connID)
	if !ok {
		return
	}

	logf(s.cfg, "GAME: Player %s disconnected", id)

	if opponent, paired := s.table.opponentOf(id); paired {
		s.notify(opponent, OpponentDisconnectedMessage{
			Type:    "opponentDisconnected",
			Message: "Your opponent disconnected. Waiting for a new match.",
		})
		s.table.unpair(id)

		if s.live(opponent) {
			_ = s.queue.enqueue(opponent)
		}
	}

	s.queue.remove(id)
	s.registry.release(s.ctx, connID, s.cfg)

	s.matchLocked()
}

// Leaderboard reports the top scores from the durable tier, so players who
// are offline keep their placing.
func (s *Session) Leaderboard(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	top, err := s.registry.store.TopScores(s.ctx, s.cfg.leaderboardSize)
	if err != nil {
		s.fail(connID, fmt.Errorf("%w: %v", errPersistence, err))
		return
	}

	players := make([]LeaderboardEntry, 0, len(top))
	for _, sr := range top {
		players = append(players, LeaderboardEntry{
			Name:       sr.Name,
			Score:      parseIntField(sr.Score, s.cfg.initialScore),
			TotalGames: parseIntField(sr.TotalGames, 0),
		})
	}

	s.send(connID, LeaderboardMessage{
		Type:    "leaderboardData",
		Players: players,
	})
}

// Stats sends the caller's full record snapshot.
func (s *Session) Stats(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.registry.boundID(connID)
	if !ok {
		s.fail(connID, errNotLoggedIn)
		return
	}

	rec, err := s.registry.get(s.ctx, id)
	if err != nil {
		s.fail(connID, err)
		return
	}

	s.send(connID, PlayerStatsMessage{
		Type:       "playerStats",
		PlayerData: rec.snapshot(),
	})
}

// matchLocked drains the queue: pop the two longest-waiting ids, drop dead
// ones (re-inserting a live partner at the head), and pair the first valid
// couple. Loops until fewer than two players wait.
func (s *Session) matchLocked() {
	for {
		idA, idB, ok := s.queue.popPair()
		if !ok {
			return
		}

		liveA, liveB := s.live(idA), s.live(idB)

		switch {
		case !liveA && !liveB:
			logf(s.cfg, "GAME: Dropped dead queue entries %s, %s", idA, idB)
			continue
		case !liveA:
			logf(s.cfg, "GAME: Dropped dead queue entry %s", idA)
			s.queue.requeueFront(idB)
			continue
		case !liveB:
			logf(s.cfg, "GAME: Dropped dead queue entry %s", idB)
			s.queue.requeueFront(idA)
			continue
		}

		// A fresh pairing starts with both choices cleared.
		if err := s.registry.mutate(s.ctx, idA, resetPendingChoice); err != nil {
			s.failPlayer(idA, err)
			s.queue.requeueFront(idB)
			continue
		}
		if err := s.registry.mutate(s.ctx, idB, resetPendingChoice); err != nil {
			s.failPlayer(idB, err)
			s.queue.requeueFront(idA)
			continue
		}

		if err := s.table.pair(idA, idB); err != nil {
			// Should be unreachable: queue and table membership are
			// mutually exclusive. Log and put the unpaired side back.
			logf(s.cfg, "ERROR: Pairing %s with %s failed: %v", idA, idB, err)
			if !s.table.paired(idA) {
				s.queue.requeueFront(idA)
			}
			if !s.table.paired(idB) {
				s.queue.requeueFront(idB)
			}
			continue
		}

		recA, errA := s.registry.get(s.ctx, idA)
		recB, errB := s.registry.get(s.ctx, idB)
		if errA != nil || errB != nil {
			logf(s.cfg, "ERROR: Paired players vanished: %v %v", errA, errB)
			s.table.unpair(idA)
			continue
		}

		logf(s.cfg, "GAME: Matched %q with %q", recA.Name, recB.Name)

		s.notify(idA, MatchFoundMessage{
			Type:            "matchFound",
			Opponent:        recB.ID,
			OpponentName:    recB.Name,
			OpponentHistory: recB.snapshot().History,
		})
		s.notify(idB, MatchFoundMessage{
			Type:            "matchFound",
			Opponent:        recA.ID,
			OpponentName:    recA.Name,
			OpponentHistory: recA.snapshot().History,
		})
	}
}

func resetPendingChoice(p *PlayerRecord) {
	p.PendingChoice = ChoiceNone
}

// live reports whether the player has an in-memory record and at least one
// bound connection.
func (s *Session) live(id string) bool {
	if _, ok := s.registry.players[id]; !ok {
		return false
	}
	return s.registry.bound(id)
}

// notify sends msg to every connection bound to the player.
func (s *Session) notify(id string, msg any) {
	for _, connID := range s.registry.connsFor(id) {
		s.send(connID, msg)
	}
}

func (s *Session) fail(connID string, err error) {
	logf(s.cfg, "GAME: Rejected operation on %s: %v", connID, err)

	s.send(connID, ErrorMessage{
		Type:    "error",
		Message: err.Error(),
	})
}

func (s *Session) failPlayer(id string, err error) {
	logf(s.cfg, "GAME: Rejected operation for player %s: %v", id, err)

	s.notify(id, ErrorMessage{
		Type:    "error",
		Message: err.Error(),
	})
}
