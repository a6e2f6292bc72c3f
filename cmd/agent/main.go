// Command agent runs one turn of the philosophy research agent against
// a conversation supplied on the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"philoagent/internal/config"
	"philoagent/internal/encyclopedia"
	"philoagent/internal/llm"
	"philoagent/internal/llm/providers"
	"philoagent/internal/metadata"
	"philoagent/internal/observability"
	"philoagent/internal/sources"
	"philoagent/internal/turn"
	"philoagent/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	question := flag.String("q", "", "user question for this turn")
	timeoutSec := flag.Int("timeout", 120, "turn timeout in seconds")
	flag.Parse()

	if *question == "" {
		fmt.Fprintln(os.Stderr, "usage: agent -q \"question\" [-config path]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, *question, time.Duration(*timeoutSec)*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, question string, timeout time.Duration) error {
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTel.OTLP != "" {
		shutdown, err := observability.InitOTel(baseCtx, cfg.OTel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "otel init failed, continuing without tracing: %v\n", err)
		} else {
			defer shutdown(baseCtx)
		}
	}

	provider, err := providers.Build(cfg.LLM)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	vecStore, err := vectorstore.New(cfg.Qdrant)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer vecStore.Close()

	metaStore, err := metadata.Open(baseCtx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer metaStore.Close()

	httpClient := observability.NewHTTPClient(nil)
	sepClient := encyclopedia.New(cfg.Sep, httpClient, cfg.Research.HTTPTimeout())

	vectorAdapter := sources.NewVectorAdapter(vecStore, metaStore, cfg.Embed, cfg.Research)
	encyclopediaAdapter := sources.NewEncyclopediaAdapter(sepClient, provider, cfg.Research)

	ctx, cancel := context.WithTimeout(baseCtx, timeout)
	defer cancel()

	deps := turn.Deps{
		Provider:     provider,
		Vector:       vectorAdapter,
		Encyclopedia: encyclopediaAdapter,
		Config:       cfg.Research,
	}
	conversation := []llm.Message{{Role: "user", Content: question}}

	outcome, err := turn.Run(ctx, deps, conversation)
	if err != nil {
		return fmt.Errorf("run turn: %w", err)
	}

	fmt.Println(outcome.Response)
	return nil
}
