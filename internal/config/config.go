package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ModelConfig configures the chat-completion model service.
type ModelConfig struct {
	Name        string  `yaml:"name"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float32 `yaml:"top_p"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// PineconeConfig contains connection details for the managed vector index.
type PineconeConfig struct {
	ControlURL     string `yaml:"control_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Index          string `yaml:"index"`
	Namespace      string `yaml:"namespace"`
	EmbeddingModel string `yaml:"embedding_model"`
	Cloud          string `yaml:"cloud"`
	Region         string `yaml:"region"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	SentencesPerChunk int `yaml:"sentences_per_chunk"`
	OverlapSentences  int `yaml:"overlap_sentences"`
}

// RetrievalConfig configures context retrieval per chat turn.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// SelectorConfig configures the index selection step of the agent.
type SelectorConfig struct {
	DelayMillis int `yaml:"delay_millis"`
	MaxTokens   int `yaml:"max_tokens"`
}

// SummarizerConfig configures the ingest summary shown by cvindex.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Model       ModelConfig       `yaml:"model"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Selector    SelectorConfig    `yaml:"selector"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/cvchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/cvchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cvchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		VectorStore: VectorStoreConfig{Type: "pinecone"},
		Chunker:     ChunkerConfig{SentencesPerChunk: 3, OverlapSentences: 1},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Model.Name == "" {
		cfg.Model.Name = "meta-llama/llama-4-scout-17b-16e-instruct"
	}
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model.APIKeyEnv == "" {
		cfg.Model.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = 1
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 1024
	}
	if cfg.Model.TopP == 0 {
		cfg.Model.TopP = 1
	}
	if cfg.Model.TimeoutSecs == 0 {
		cfg.Model.TimeoutSecs = 60
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "pinecone"
	}
	if cfg.VectorStore.Type == "pinecone" {
		if cfg.VectorStore.Pinecone == nil {
			cfg.VectorStore.Pinecone = &PineconeConfig{}
		}
		pc := cfg.VectorStore.Pinecone
		if pc.ControlURL == "" {
			pc.ControlURL = "https://api.pinecone.io"
		}
		if pc.APIKeyEnv == "" {
			pc.APIKeyEnv = "PINECONE_API_KEY"
		}
		if pc.Index == "" {
			pc.Index = "cv-index"
		}
		if pc.Namespace == "" {
			pc.Namespace = "cv-namespace"
		}
		if pc.EmbeddingModel == "" {
			pc.EmbeddingModel = "llama-text-embed-v2"
		}
		if pc.Cloud == "" {
			pc.Cloud = "aws"
		}
		if pc.Region == "" {
			pc.Region = "us-east-1"
		}
		if pc.TimeoutSecs == 0 {
			pc.TimeoutSecs = 30
		}
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 3
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Selector.DelayMillis == 0 {
		cfg.Selector.DelayMillis = 500
	}
	if cfg.Selector.MaxTokens == 0 {
		cfg.Selector.MaxTokens = 50
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
}
