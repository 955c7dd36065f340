package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cvchat/internal/config"
	"cvchat/internal/domain"
	"cvchat/internal/llm"
	"cvchat/internal/responder"
	"cvchat/internal/retriever"
	"cvchat/internal/session"
	"cvchat/internal/vectorstore/memory"
	"cvchat/internal/vectorstore/pinecone"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/cvchat/config.yaml if not provided)")
	flag.Parse()

	cfg := loadConfig(cfgPath)
	logger := log.Default()

	store, namespace := buildStore(cfg, logger)
	chat := buildChat(cfg)

	retr := retriever.New(store, namespace, logger)
	resp := responder.New(chat, responder.Options{
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		TopP:        cfg.Model.TopP,
	})
	sess := session.New(retr, resp, indexName(cfg), cfg.Retrieval.TopK, logger)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\n\nNos vemos la proxima.")
		os.Exit(0)
	}()

	fmt.Println("Chatea sobre el CV. Escribe 'exit' o 'quit' para salir.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Tú: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if lower := strings.ToLower(input); lower == "exit" || lower == "quit" {
			break
		}
		sess.Chat(context.Background(), input, func(delta string) {
			fmt.Print(delta)
		})
		fmt.Println()
	}
	fmt.Println("\nNos vemos la proxima.")
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

func buildChat(cfg *config.AppConfig) domain.ChatClient {
	apiKey := os.Getenv(cfg.Model.APIKeyEnv)
	if apiKey == "" {
		log.Fatalf("environment variable %s is not set", cfg.Model.APIKeyEnv)
	}
	chat, err := llm.NewClient(llm.Config{
		APIKey:  apiKey,
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Name,
	})
	if err != nil {
		log.Fatalf("model client init failed: %v", err)
	}
	return chat
}
