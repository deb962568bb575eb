package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/subscout/subreddit-analyzer/internal/analyzer"
	"github.com/subscout/subreddit-analyzer/internal/config"
	"github.com/subscout/subreddit-analyzer/internal/enrichment"
	"github.com/subscout/subreddit-analyzer/internal/models"
	"github.com/subscout/subreddit-analyzer/internal/sources"
	"github.com/subscout/subreddit-analyzer/internal/storage"
)

func main() {
	jsonOutput := flag.Bool("json", false, "print the report as JSON")
	noNarrative := flag.Bool("no-narrative", false, "skip narrative enrichment")
	outputDir := flag.String("out", "test_output", "directory the reports are written to")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <community> [community...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.WarnLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	store, err := storage.NewLocalStorage(*outputDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	var enricher enrichment.Enricher
	client := enrichment.NewClient(enrichment.Config{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
		MaxRetries:  cfg.LLMMaxRetries,
		Backoff:     cfg.LLMBackoff,
	})
	if client.IsEnabled() && !*noNarrative {
		enricher = client
	}

	service := analyzer.NewService(cfg,
		sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditUserAgent),
		enricher, store, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	failed := 0
	for _, name := range flag.Args() {
		report, err := service.AnalyzeCommunity(ctx, name)
		if report == nil {
			fmt.Fprintf(os.Stderr, "❌ r/%s: %v\n", strings.TrimPrefix(name, "r/"), err)
			failed++
			continue
		}

		if *jsonOutput {
			data, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(data))
		} else {
			printReport(report)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  r/%s: %v\n", report.Community, err)
			if errors.Is(err, enrichment.ErrRemoteQuotaExhausted) {
				fmt.Fprintln(os.Stderr, "   The completion provider reports no remaining quota.")
			}
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func printReport(report *models.AnalysisReport) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("📊 r/%s MARKETING ANALYSIS\n", report.Community)
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("🕒 Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("👥 Subscribers: %d (%d online)\n", report.CommunityMetadata.SubscriberCount, report.CommunityMetadata.ActiveUserCount)
	fmt.Printf("🎯 Friendliness Score: %d/100\n", report.Score)

	printList("💡 Why", report.Reasons)
	printList("📌 Recommendations", report.Recommendations)
	printList("⏰ Best Times", report.PostingGuidelines.BestTimes)
	printList("🚫 Restrictions", report.PostingGuidelines.Restrictions)

	var types []string
	for _, t := range report.ContentStrategy.RecommendedTypes {
		types = append(types, string(t))
	}
	printList("🧩 Content Types", types)
	printList("🗂  Topics", report.ContentStrategy.Topics)
	printList("✅ Do", report.ContentStrategy.Dos)
	printList("❌ Don't", report.ContentStrategy.Donts)

	if !report.Enriched {
		if report.EnrichmentError != "" {
			fmt.Printf("\n⚠️  Narrative unavailable: %s\n", report.EnrichmentError)
		}
		return
	}

	printList(fmt.Sprintf("✍️  Title Patterns (%d%% effective)", report.TitleTemplates.Effectiveness), report.TitleTemplates.Patterns)
	printList("💪 Strengths", report.StrategicAnalysis.Strengths)
	printList("⚠️  Risks", report.StrategicAnalysis.Risks)
	printList("🚀 Immediate", report.GamePlan.Immediate)
	printList("📅 Short Term", report.GamePlan.ShortTerm)
	printList("🏁 Long Term", report.GamePlan.LongTerm)
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}
