package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestGameCatalogCaches(t *testing.T) {
	loader := &countingLoader{
		GameLoader: NewStaticGameLoader(map[string]domain.Game{
			"game-1": sampleGame(),
		}),
	}
	catalog := NewGameCatalog(loader, time.Minute)

	if _, err := catalog.GetGame(context.Background(), "game-1"); err != nil {
		t.Fatalf("get game: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := catalog.GetGame(context.Background(), "game-1"); err != nil {
		t.Fatalf("get game 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestGameCatalogUnknownGame(t *testing.T) {
	catalog := NewGameCatalog(NewStaticGameLoader(nil), time.Minute)
	if _, err := catalog.GetGame(context.Background(), "nope"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestActiveSessionMarker(t *testing.T) {
	catalog := NewGameCatalog(NewStaticGameLoader(nil), time.Minute)
	ctx := context.Background()

	if err := catalog.SetActiveSession(ctx, "game-1", "s1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if id, ok := catalog.ActiveSession("game-1"); !ok || id != "s1" {
		t.Fatalf("expected marker s1, got %q ok=%v", id, ok)
	}

	if err := catalog.SetActiveSession(ctx, "game-1", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := catalog.ActiveSession("game-1"); ok {
		t.Fatalf("expected marker cleared")
	}
}

type countingLoader struct {
	GameLoader
	calls int
}

func (l *countingLoader) LoadGame(ctx context.Context, gameID string) (domain.Game, error) {
	l.calls++
	return l.GameLoader.LoadGame(ctx, gameID)
}

func sampleGame() domain.Game {
	return domain.Game{
		ID:    "game-1",
		Owner: "host-1",
		Questions: []domain.Question{
			{
				Type:   domain.QuestionSingle,
				Prompt: "What is 2 + 2?",
				Options: []domain.Option{
					{Text: "3"},
					{Text: "4", Correct: true},
				},
				TimeLimitSec: 10,
			},
		},
	}
}
