// Command recall-chat is an interactive harness for the memory pipeline:
// every line you type is recorded and analyzed, and the resulting context
// bundle is printed so you can watch the conversation memory build up.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/engine"
	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/internal/storage/postgres"
	"github.com/scrypster/recall/internal/storage/sqlite"
	"github.com/scrypster/recall/pkg/types"
)

var (
	header  = color.New(color.FgCyan, color.Bold)
	label   = color.New(color.FgYellow)
	detail  = color.New(color.FgWhite)
	muted   = color.New(color.FgHiBlack)
	errText = color.New(color.FgRed)
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("recall-chat: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("recall-chat: %v", err)
	}
	defer store.Close()

	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		log.Fatalf("recall-chat: %v", err)
	}

	embedder, err := llm.NewEmbeddingService(client, cfg.Embedding.CacheSize)
	if err != nil {
		log.Fatalf("recall-chat: %v", err)
	}

	analyzer := engine.NewAnalyzer(store, embedder, client, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header.Println("recall-chat: type a message, /help for commands")
	runREPL(ctx, analyzer)
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqlite.New(filepath.Join(cfg.Storage.DataPath, "recall.db"))
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage engine: %q", cfg.Storage.Engine)
	}
}

func runREPL(ctx context.Context, analyzer *engine.Analyzer) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			muted.Println("bye")
			return
		case line, ok := <-lines:
			if !ok {
				muted.Println("bye")
				return
			}
			text := strings.TrimSpace(line)
			switch {
			case text == "":
				continue
			case text == "/quit" || text == "/exit":
				muted.Println("bye")
				return
			case text == "/help":
				printHelp()
				continue
			}

			analysis, err := analyzer.AnalyzeMessage(ctx, &types.ChatMessage{
				Content:   text,
				Role:      types.RoleUser,
				Timestamp: time.Now(),
			})
			if err != nil {
				errText.Printf("analysis failed: %v\n", err)
				continue
			}
			printAnalysis(analysis)
		}
	}
}

func printHelp() {
	detail.Println("  /help        show this help")
	detail.Println("  /quit        exit")
	detail.Println("  anything else is recorded and analyzed")
}

func printAnalysis(a *types.ContextAnalysis) {
	label.Printf("confidence %.2f  continuity %.2f", a.Confidence, a.ConversationContinuity)
	if a.IsNewTopic {
		label.Print("  [new topic]")
	}
	fmt.Println()

	if len(a.Topics) > 0 {
		muted.Printf("topics: %s\n", strings.Join(a.Topics, ", "))
	}

	if len(a.SimilarChunks) > 0 {
		header.Println("related:")
		for _, sc := range a.SimilarChunks {
			detail.Printf("  %.2f  %s\n", sc.Similarity, singleLine(sc.Chunk.Content))
		}
	}

	if len(a.MentionedEntities) > 0 {
		var names []string
		for _, e := range a.MentionedEntities {
			names = append(names, fmt.Sprintf("%s (%s)", e.CanonicalName, e.Type))
		}
		muted.Printf("entities: %s\n", strings.Join(names, ", "))
	}

	if a.TimeSpanDays > 0 {
		muted.Printf("spans %d days of history\n", a.TimeSpanDays)
	}
	muted.Printf("%d chunks, %d entities, %.1fms\n",
		a.TotalChunksAnalyzed, a.TotalEntitiesExtracted, a.ProcessingTimeMs)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
