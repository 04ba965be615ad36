package main

// Wire messages, one struct per event name. The Type field carries the
// event name so clients can dispatch on it; payload field names follow the
// original Trust PVP protocol.

// Messages coming from clients
type ClientMessage struct {
	Type       string `json:"type"`                 // "login", "joinGame", "makeChoice", "getLeaderboard", "getPlayerStats"
	PlayerName string `json:"playerName,omitempty"` // login
	PlayerID   string `json:"playerId,omitempty"`   // login, optional reconnect identifier
	Choice     string `json:"choice,omitempty"`     // makeChoice: "cooperate" or "betray"
}

// Sent once a login has been validated and persisted.
type LoginSuccessMessage struct {
	Type        string       `json:"type"` // "loginSuccess"
	PlayerData  PlayerRecord `json:"playerData"`
	IsNewPlayer bool         `json:"isNewPlayer"`
}

// Sent when a join is accepted, before any match is found. GlobalRewards is
// the payoff matrix currently in effect.
type GameJoinedMessage struct {
	Type          string       `json:"type"` // "gameJoined"
	PlayerData    PlayerRecord `json:"playerData"`
	GlobalRewards Rewards      `json:"globalRewards"`
}

// Sent to both sides when a pairing is formed.
type MatchFoundMessage struct {
	Type            string         `json:"type"` // "matchFound"
	Opponent        string         `json:"opponent"`
	OpponentName    string         `json:"opponentName"`
	OpponentHistory []HistoryEntry `json:"opponentHistory"`
}

// Sent to each side after a round settles. Score is this player's delta for
// the round, TotalScore the running total after settlement.
type RoundCompleteMessage struct {
	Type           string `json:"type"` // "roundComplete"
	Score          int    `json:"score"`
	TotalScore     int    `json:"totalScore"`
	OpponentChoice string `json:"opponentChoice"`
	OpponentName   string `json:"opponentName"`
}

// Sent when a player hits the score floor or the round ceiling.
type GameEndMessage struct {
	Type       string         `json:"type"` // "gameEnd"
	FinalScore int            `json:"finalScore"`
	History    []HistoryEntry `json:"history"`
	Rounds     int            `json:"rounds"`
	Message    string         `json:"message"`
}

type OpponentDisconnectedMessage struct {
	Type    string `json:"type"` // "opponentDisconnected"
	Message string `json:"message"`
}

type LeaderboardEntry struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	TotalGames int    `json:"totalGames"`
}

type LeaderboardMessage struct {
	Type    string             `json:"type"` // "leaderboardData"
	Players []LeaderboardEntry `json:"players"`
}

type PlayerStatsMessage struct {
	Type       string       `json:"type"` // "playerStats"
	PlayerData PlayerRecord `json:"playerData"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
