package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// GameLoader fetches game definitions from a backing store (e.g., Postgres).
type GameLoader interface {
	LoadGame(ctx context.Context, gameID string) (domain.Game, error)
}

// GameCatalog caches game definitions with TTL to avoid repeated store hits
// and tracks the per-game active session marker in process.
type GameCatalog struct {
	loader GameLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu     sync.RWMutex
	cache  map[string]cachedGame
	active map[string]string
}

type cachedGame struct {
	game      domain.Game
	expiresAt time.Time
}

func NewGameCatalog(loader GameLoader, ttl time.Duration) *GameCatalog {
	return &GameCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedGame),
		active: make(map[string]string),
	}
}

func (c *GameCatalog) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[gameID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.game, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(gameID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[gameID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.game, nil
		}
		c.mu.RUnlock()

		game, err := c.loader.LoadGame(ctx, gameID)
		if err != nil {
			return domain.Game{}, err
		}

		c.mu.Lock()
		c.cache[gameID] = cachedGame{
			game:      game,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return game, nil
	})
	if err != nil {
		return domain.Game{}, err
	}
	return result.(domain.Game), nil
}

func (c *GameCatalog) SetActiveSession(_ context.Context, gameID, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sessionID == "" {
		delete(c.active, gameID)
		return nil
	}
	c.active[gameID] = sessionID
	return nil
}

// ActiveSession reports the marker written by SetActiveSession.
func (c *GameCatalog) ActiveSession(gameID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.active[gameID]
	return id, ok
}

func (c *GameCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticGameLoader is a simple loader backed by an in-memory map (useful for
// tests/demos).
type StaticGameLoader struct {
	games map[string]domain.Game
}

func NewStaticGameLoader(games map[string]domain.Game) *StaticGameLoader {
	return &StaticGameLoader{games: games}
}

func (l *StaticGameLoader) LoadGame(_ context.Context, gameID string) (domain.Game, error) {
	if game, ok := l.games[gameID]; ok {
		return game, nil
	}
	return domain.Game{}, domain.ErrGameNotFound
}
