package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// GameLoader fetches game definitions from a backing store (e.g., Postgres).
type GameLoader interface {
	LoadGame(ctx context.Context, gameID string) (domain.Game, error)
}

// GameCatalog caches game definitions in Redis and falls back to a loader on
// cache miss. The per-game active session marker also lives in Redis so other
// instances (or a dashboard) can see which games are live:
//
//	SET game:{gameID}:def     {game JSON}   EX ttl
//	SET game:{gameID}:session {sessionID}
type GameCatalog struct {
	client *redis.Client
	loader GameLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewGameCatalog(client *redis.Client, loader GameLoader, ttl time.Duration) *GameCatalog {
	return &GameCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *GameCatalog) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	key := c.defKey(gameID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
		var game domain.Game
		if err := json.Unmarshal(raw, &game); err == nil {
			return game, nil
		}
		// fall through and reload on a corrupt entry
	}

	result, err, _ := c.sf.Do(gameID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			var game domain.Game
			if err := json.Unmarshal(raw, &game); err == nil {
				return game, nil
			}
		}

		game, err := c.loader.LoadGame(ctx, gameID)
		if err != nil {
			return domain.Game{}, err
		}

		if raw, err := json.Marshal(game); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return game, nil
	})
	if err != nil {
		return domain.Game{}, err
	}
	return result.(domain.Game), nil
}

func (c *GameCatalog) SetActiveSession(ctx context.Context, gameID, sessionID string) error {
	key := c.sessionKey(gameID)
	if sessionID == "" {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("clear active session: %w", err)
		}
		return nil
	}
	if err := c.client.Set(ctx, key, sessionID, 0).Err(); err != nil {
		return fmt.Errorf("set active session: %w", err)
	}
	return nil
}

// ActiveSession reads the live-session marker for a game.
func (c *GameCatalog) ActiveSession(ctx context.Context, gameID string) (string, error) {
	id, err := c.client.Get(ctx, c.sessionKey(gameID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

func (c *GameCatalog) defKey(gameID string) string {
	return "game:" + gameID + ":def"
}

func (c *GameCatalog) sessionKey(gameID string) string {
	return "game:" + gameID + ":session"
}

func (c *GameCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
