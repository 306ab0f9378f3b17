// Command bazaard runs the Electro Bazaar negotiation marketplace server.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/talgya/electro-bazaar/internal/api"
	"github.com/talgya/electro-bazaar/internal/bazaar"
	"github.com/talgya/electro-bazaar/internal/config"
	"github.com/talgya/electro-bazaar/internal/entropy"
	"github.com/talgya/electro-bazaar/internal/llm"
	"github.com/talgya/electro-bazaar/internal/market"
	"github.com/talgya/electro-bazaar/internal/persistence"
	"github.com/talgya/electro-bazaar/internal/session"
	"github.com/talgya/electro-bazaar/internal/trade"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Secrets come from the environment; .env is a dev convenience.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		slog.Info("config loaded", "path", *configPath)
	} else {
		cfg = config.Default()
	}

	cat, err := cfg.BuildCatalog()
	if err != nil {
		slog.Error("bad catalog config", "error", err)
		os.Exit(1)
	}
	shops, err := cfg.BuildShops(cat)
	if err != nil {
		slog.Error("bad shop config", "error", err)
		os.Exit(1)
	}
	seed, err := cfg.BuildSeed(cat)
	if err != nil {
		slog.Error("bad portfolio config", "error", err)
		os.Exit(1)
	}

	// ── Entropy ───────────────────────────────────────────────────────
	randomOrg := entropy.NewClient(os.Getenv("RANDOM_ORG_API_KEY"))
	if randomOrg.Enabled() {
		slog.Info("entropy: random.org pool enabled")
	} else {
		slog.Info("entropy: crypto/rand")
	}
	src := entropy.FromClient(randomOrg)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0755)
	db, err := persistence.Open(cfg.Server.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.Server.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Server.DBPath)

	// ── Market ────────────────────────────────────────────────────────
	mkt := market.New(cat, src,
		market.WithUpdatePeriod(cfg.UpdatePeriod()),
		market.WithTranscriptCap(cfg.Market.TranscriptCap),
	)
	if prices, demand, lastUpdate, found, err := db.LoadMarketState(); err != nil {
		slog.Warn("market state load failed, starting fresh", "error", err)
	} else if found {
		mkt.Restore(prices, demand, lastUpdate)
	}

	// ── LLM Client ────────────────────────────────────────────────────
	llmClient := llm.NewClient(os.Getenv("ANTHROPIC_API_KEY"),
		llm.WithMaxPerMin(cfg.LLM.MaxCallsPerMinute))
	if llmClient.Enabled() {
		slog.Info("LLM client enabled (Haiku)")
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set — shopkeepers will use canned replies")
	}

	// ── Core ──────────────────────────────────────────────────────────
	sessions := session.NewManager(seed)
	core := bazaar.New(cat, shops, mkt, sessions, trade.NewArbiter(cat, src),
		bazaar.WithJournal(db),
		bazaar.WithDialogue(func(ctx llm.ShopContext, utterance string) (string, error) {
			return llm.ShopkeeperReply(llmClient, ctx, utterance)
		}),
	)

	// ── HTTP API ──────────────────────────────────────────────────────
	apiServer := &api.Server{Core: core, Port: cfg.Server.Port}
	apiServer.Start()

	fmt.Printf("\nElectro Bazaar is open: %d shops trading %d goods.\n",
		len(shops.All()), len(cat.Items()))
	fmt.Printf("API: http://localhost:%d/api/v1/market\n", cfg.Server.Port)
	fmt.Println("Serving... (Ctrl+C to stop)")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	// Final checkpoint on shutdown.
	if err := core.Checkpoint(); err != nil {
		slog.Error("final checkpoint failed", "error", err)
	}

	fmt.Println("Server stopped. Market state saved.")
}
