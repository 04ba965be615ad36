// Trust PVP arena
//
// Every connected player is repeatedly paired against a peer for an iterated
// prisoner's dilemma: both pick cooperate or betray without seeing the other
// side's pending choice, a payoff matrix turns the pair of choices into
// score deltas, and play repeats until a player's score hits the floor or
// the round ceiling is reached.
//
// Features:
// - Single shared arena: /path serves the client, /path/ws the websocket
// - login with an optional playerId reclaims score and games played across
//   reconnects and restarts (bolt file, redis, or in-memory store)
// - FIFO matchmaking over one waiting queue, re-queue after every round
// - Per-round history with payoff snapshots, capped to the last N rounds
// - Leaderboard and per-player stats on demand
// - In-browser QR button to share the arena, backed by go-qrcode
//
// Implementation details:
// - One Session guards all registry/queue/table state behind a mutex
// - Clients are identified per connection; identity travels in the login
//   message rather than a cookie so bots can reconnect as themselves

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

type Client struct {
	conn   *websocket.Conn
	send   chan any
	connID string
}

// arena owns the live connections and hands inbound messages to the
// session coordinator.
type arena struct {
	cfg     *Config
	session *Session

	mu      sync.Mutex
	clients map[string]*Client
}

func newArena(ctx context.Context, cfg *Config, store RecordStore) *arena {
	a := &arena{
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
	a.session = newSession(ctx, cfg, store, a.deliver)
	return a
}

// deliver queues msg for the connection, dropping the client when its send
// buffer is full so a stalled reader cannot block the session.
func (a *arena) deliver(connID string, msg any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.clients[connID]
	if !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(a.clients, connID)
		close(c.send)
	}
}

func (a *arena) add(c *Client) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.clients[c.connID] = c
}

func (a *arena) remove(c *Client) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if current, ok := a.clients[c.connID]; ok && current == c {
		delete(a.clients, c.connID)
		close(c.send)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	return hex.EncodeToString(buf)
}

func serveWS(cfg *Config, a *arena) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		connID := newConnID()
		if connID == "" {
			http.Error(w, "unable to assign connection id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:   conn,
			send:   make(chan any, 16),
			connID: connID,
		}

		a.add(client)
		logf(cfg, "SERVE: Websocket %s connected from %s", connID, realIP(r))

		go client.writePump()
		client.readPump(a)
	}
}

func (c *Client) readPump(a *arena) {
	defer func() {
		a.remove(c)
		a.session.Disconnect(c.connID)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "login":
			a.session.Login(c.connID, msg.PlayerID, msg.PlayerName)
		case "joinGame":
			a.session.Join(c.connID)
		case "makeChoice":
			a.session.Choice(c.connID, msg.Choice)
		case "getLeaderboard":
			a.session.Leaderboard(c.connID)
		case "getPlayerStats":
			a.session.Stats(c.connID)
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the arena URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../qr; strip the trailing "/qr" to get the arena URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func arenaIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(arenaHTML))
	}
}

// registerTrustGame sets up routes so that:
//   - $path       → HTML client
//   - $path/ws    → shared arena websocket
//   - $path/qr    → PNG QR code for the arena URL
func registerTrustGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, store RecordStore) {
	a := newArena(ctx, cfg, store)

	mux.GET(cfg.prefix+path, arenaIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, a))

	mux.GET(cfg.prefix+path+"/qr", qrHandler)
}

// Simple HTML client for quick testing
const arenaHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Trust PVP</title>
<style>
  body { font-family: system-ui, -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; }
  h1 { margin-bottom: 0.5rem; }
  #status { margin-bottom: 1rem; font-size: 0.9rem; }
  #controls button { margin-right: 0.5rem; padding: 0.5rem 1rem; }
  #log { margin-top: 1rem; padding: 0; list-style: none; max-height: 24rem; overflow-y: auto; }
  #log li { padding: 0.25rem 0; border-bottom: 1px solid #ddd; }
</style>
</head>
<body>
<h1>Trust PVP</h1>
<div id="status">Connecting…</div>
<div id="controls">
  <button id="join">Join game</button>
  <button id="cooperate" disabled>Cooperate</button>
  <button id="betray" disabled>Betray</button>
  <button id="board">Leaderboard</button>
  <button id="qr">QR</button>
</div>
<ul id="log"></ul>

<script>
(function() {
  const statusEl = document.getElementById('status');
  const logEl = document.getElementById('log');
  const joinBtn = document.getElementById('join');
  const coopBtn = document.getElementById('cooperate');
  const betrayBtn = document.getElementById('betray');
  const boardBtn = document.getElementById('board');
  const qrBtn = document.getElementById('qr');

  function log(text) {
    const li = document.createElement('li');
    li.textContent = text;
    logEl.prepend(li);
  }

  function setInMatch(on) {
    coopBtn.disabled = !on;
    betrayBtn.disabled = !on;
  }

  const proto = (location.protocol === 'https:') ? 'wss://' : 'ws://';
  const wsPath = location.pathname.replace(/\/$/, '') + '/ws';
  const ws = new WebSocket(proto + location.host + wsPath);

  ws.onopen = function() {
    statusEl.textContent = 'Connected.';

    const name = prompt('Enter your name (max 20 chars):') || '';
    if (!name) {
      statusEl.textContent = 'A name is required to play.';
      return;
    }
    ws.send(JSON.stringify({
      type: 'login',
      playerName: name.slice(0, 20),
      playerId: localStorage.getItem('trustpvp_id') || undefined
    }));
  };

  ws.onmessage = function(event) {
    try {
      const msg = JSON.parse(event.data);

      switch (msg.type) {
      case 'loginSuccess':
        localStorage.setItem('trustpvp_id', msg.playerData.id);
        statusEl.textContent = 'Logged in as ' + msg.playerData.name +
          ' (score ' + msg.playerData.score + ').';
        log(msg.isNewPlayer ? 'Welcome!' : 'Welcome back!');
        break;
      case 'gameJoined':
        statusEl.textContent = 'Waiting for an opponent…';
        break;
      case 'matchFound':
        statusEl.textContent = 'Matched with ' + msg.opponentName + '. Choose!';
        setInMatch(true);
        break;
      case 'roundComplete':
        log('Opponent ' + msg.opponentName + ' chose ' + msg.opponentChoice +
          ': ' + (msg.score >= 0 ? '+' : '') + msg.score +
          ' (total ' + msg.totalScore + ')');
        statusEl.textContent = 'Round settled. Waiting for the next round…';
        setInMatch(false);
        break;
      case 'gameEnd':
        log('Game over: ' + msg.message + '. Final score ' + msg.finalScore +
          ' after ' + msg.rounds + ' rounds.');
        statusEl.textContent = 'Game over. Join again to keep playing.';
        setInMatch(false);
        break;
      case 'opponentDisconnected':
        log(msg.message);
        statusEl.textContent = 'Waiting for a new opponent…';
        setInMatch(false);
        break;
      case 'leaderboardData':
        msg.players.forEach(function(p, i) {
          log((i + 1) + '. ' + p.name + ' — ' + p.score);
        });
        break;
      case 'error':
        log('Error: ' + msg.message);
        break;
      }
    } catch (e) {
      console.error('bad message', e);
    }
  };

  ws.onclose = function() {
    statusEl.textContent = 'Disconnected.';
    setInMatch(false);
  };

  ws.onerror = function() {
    statusEl.textContent = 'Error with WebSocket.';
  };

  joinBtn.onclick = function() {
    ws.send(JSON.stringify({ type: 'joinGame' }));
  };
  coopBtn.onclick = function() {
    ws.send(JSON.stringify({ type: 'makeChoice', choice: 'cooperate' }));
  };
  betrayBtn.onclick = function() {
    ws.send(JSON.stringify({ type: 'makeChoice', choice: 'betray' }));
  };
  boardBtn.onclick = function() {
    ws.send(JSON.stringify({ type: 'getLeaderboard' }));
  };
  qrBtn.onclick = function() {
    window.open(location.pathname.replace(/\/$/, '') + '/qr', '_blank');
  };
})();
</script>
</body>
</html>
`
