package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/colmduffy/recallrank/internal/cardsource"
	"github.com/colmduffy/recallrank/internal/config"
	"github.com/colmduffy/recallrank/internal/deck"
	"github.com/colmduffy/recallrank/internal/predict"
	"github.com/colmduffy/recallrank/internal/scheduler"
	"github.com/colmduffy/recallrank/internal/session"
	"github.com/colmduffy/recallrank/internal/storage"
	"github.com/colmduffy/recallrank/internal/web"
)

func main() {
	def := config.Default()

	flags := pflag.NewFlagSet("recallrank", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to a YAML config file")
	flags.String("deck", def.Deck, "Path to the deck CSV file")
	flags.String("deck-repo", "", "Git URL of a repository holding the deck file")
	flags.String("repos-dir", def.ReposDir, "Directory for cloned deck repositories")
	flags.String("db", def.DB, "Path to the SQLite database file")
	flags.String("model", "", "Path to a trained model JSON file (empty uses the built-in model)")
	flags.String("addr", def.Addr, "HTTP listen address for --serve")
	flags.Int("session-size", def.SessionSize, "Number of cards per study session")
	flags.Float64("min-priority", def.MinPriority, "Minimum priority threshold for scheduling")
	serve := flags.Bool("serve", false, "Run the web API instead of the interactive session")
	list := flags.Bool("list", false, "List all cards with their current priorities and exit")
	reset := flags.Bool("reset", false, "Reset all learning progress and exit")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	deckPath := cfg.Deck
	if cfg.DeckRepo != "" {
		localPath := filepath.Join(cfg.ReposDir, repoDirName(cfg.DeckRepo))
		if err := cardsource.SyncRepo(cfg.DeckRepo, localPath); err != nil {
			log.Fatalf("Failed to sync deck repository: %v", err)
		}
		deckPath = filepath.Join(localPath, cfg.Deck)
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	cards, err := cardsource.LoadFile(deckPath)
	if err != nil {
		log.Fatalf("Failed to load deck: %v", err)
	}

	store := deck.NewStore(db)
	if err := store.Load(cards); err != nil {
		log.Fatalf("Failed to load card state: %v", err)
	}
	// Seed state rows for cards new to this deck.
	if err := store.Flush(); err != nil {
		log.Fatalf("Failed to persist card state: %v", err)
	}

	model := predict.DefaultModel()
	if cfg.Model != "" {
		model, err = predict.LoadModel(cfg.Model)
		if err != nil {
			log.Fatalf("Failed to load model: %v", err)
		}
	}

	tracker := session.NewTracker(store)
	sched, err := scheduler.New(store, model, tracker)
	if err != nil {
		log.Fatalf("Failed to build scheduler: %v", err)
	}

	switch {
	case *reset:
		if err := sched.Reset(); err != nil {
			log.Fatalf("Failed to reset progress: %v", err)
		}
	case *list:
		if err := printAllCards(sched); err != nil {
			log.Fatalf("Failed to list cards: %v", err)
		}
	case *serve:
		log.Printf("Serving on %s", cfg.Addr)
		if err := http.ListenAndServe(cfg.Addr, web.NewServer(sched, model)); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	default:
		runMenu(sched, cfg.SessionSize, cfg.MinPriority)
	}
}

// repoDirName derives a stable local directory name for a deck repo URL.
func repoDirName(url string) string {
	name := strings.TrimSuffix(url, ".git")
	name = strings.TrimSuffix(name, "/")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = "deck"
	}
	return name
}
