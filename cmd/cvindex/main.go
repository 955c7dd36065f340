package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"cvchat/internal/chunker"
	"cvchat/internal/config"
	"cvchat/internal/domain"
	"cvchat/internal/ingest"
	"cvchat/internal/retriever"
	"cvchat/internal/summarizer"
	"cvchat/internal/tui"
	"cvchat/internal/vectorstore/memory"
	"cvchat/internal/vectorstore/pinecone"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/cvchat/config.yaml if not provided)")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: cvindex [--config=config.yaml] cv1.txt [cv2.txt ...]")
		os.Exit(1)
	}

	cfg := loadConfig(cfgPath)
	logger := log.Default()

	store, namespace := buildStore(cfg, logger)
	ch, err := chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	if err != nil {
		log.Fatalf("chunker init failed: %v", err)
	}
	pipeline := ingest.New(store, ch, namespace, logger)

	ctx := context.Background()
	var texts []string
	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		texts = append(texts, string(data))
	}
	// One document per index: chunk IDs restart per document, so the
	// inputs are ingested as a single joined text.
	document := strings.Join(texts, "\n")
	category := strings.TrimSuffix(filepath.Base(inputs[0]), filepath.Ext(inputs[0]))
	if _, err := pipeline.IngestText(ctx, indexName(cfg), document, category); err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	sum := summarizer.NewFrequencySummarizer(cfg.Summarizer.MaxSentences)
	summary := sum.Summarize(document)

	retr := retriever.New(store, namespace, logger)
	port := searchPort{retr: retr, index: indexName(cfg)}
	m := tui.New(port, summary)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

// searchPort adapts the retriever to the browser's synchronous interface.
type searchPort struct {
	retr  *retriever.Retriever
	index string
}

func (p searchPort) Search(query string, topK int) ([]domain.SearchHit, error) {
	return p.retr.Retrieve(context.Background(), p.index, query, topK)
}

func loadConfig(path string) *config.AppConfig {
	var cfg *config.AppConfig
	var err error
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func buildStore(cfg *config.AppConfig, logger *log.Logger) (domain.VectorStore, string) {
	switch cfg.VectorStore.Type {
	case "pinecone", "":
		pc := cfg.VectorStore.Pinecone
		if pc == nil {
			log.Fatalf("pinecone config missing")
		}
		apiKey := os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			log.Fatalf("environment variable %s is not set", pc.APIKeyEnv)
		}
		store := pinecone.NewClient(pinecone.Config{
			ControlURL:     pc.ControlURL,
			APIKey:         apiKey,
			EmbeddingModel: pc.EmbeddingModel,
			Cloud:          pc.Cloud,
			Region:         pc.Region,
			Timeout:        time.Duration(pc.TimeoutSecs) * time.Second,
		}, logger)
		return store, pc.Namespace
	case "memory":
		namespace := "cv-namespace"
		if cfg.VectorStore.Pinecone != nil && cfg.VectorStore.Pinecone.Namespace != "" {
			namespace = cfg.VectorStore.Pinecone.Namespace
		}
		return memory.NewStore(), namespace
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
		return nil, ""
	}
}

func indexName(cfg *config.AppConfig) string {
	if cfg.VectorStore.Pinecone != nil && cfg.VectorStore.Pinecone.Index != "" {
		return cfg.VectorStore.Pinecone.Index
	}
	return "cv-index"
}
