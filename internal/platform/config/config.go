package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定（pgvectorインデックス用）
	Database DatabaseConfig

	// インデックスバックエンド設定
	Index IndexConfig

	// OpenAI設定（Embeddings + 回答生成用）
	OpenAI OpenAIConfig

	// コーパス設定
	Corpus CorpusConfig

	// OCR設定
	OCR OCRConfig

	// チャンカー設定
	Chunker ChunkerConfig

	// パイプライン設定
	Pipeline PipelineConfig

	// 検索設定
	Retrieval RetrievalConfig

	// プロンプト設定
	Prompt PromptConfig

	// ログ設定
	Log LogConfig
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string // debug / info / warn / error
	Format string // json / text
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// IndexConfig はベクトルインデックスのバックエンド設定
type IndexConfig struct {
	Backend string // "postgres" or "memory"
}

// OpenAIConfig はOpenAI API設定（Embeddings + LLM）
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	// QA特化モデル向けの非対称エンコードプレフィックス（空の場合は対称エンコード）
	DocumentPrefix string
	QueryPrefix    string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
}

// CorpusConfig はコーパスディレクトリ設定
type CorpusConfig struct {
	Dir string
}

// OCRConfig はOCRエンジン設定
type OCRConfig struct {
	Language string  // Tesseractの言語コード（例: eng, jpn）
	DPI      float64 // 画像のみページのレンダリング解像度
}

// ChunkerConfig はQAチャンカー設定
type ChunkerConfig struct {
	MaxTokens       int    // チャンクの最大トークン数（超過時は文境界で分割）
	QuestionPattern string // 質問マーカーの行頭パターン（正規表現）
}

// PipelineConfig はインデックス化パイプライン設定
type PipelineConfig struct {
	DocumentWorkers      int
	EmbeddingWorkers     int
	EmbeddingBatchSize   int
	FailOnEmbeddingError bool
}

// RetrievalConfig は検索設定
type RetrievalConfig struct {
	DefaultK int
}

// PromptConfig はプロンプト構築設定
type PromptConfig struct {
	MaxContextTokens int
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "faqrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "faqrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Index: IndexConfig{
			Backend: getEnv("INDEX_BACKEND", "postgres"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			DocumentPrefix:     getEnv("EMBEDDING_DOC_PREFIX", ""),
			QueryPrefix:        getEnv("EMBEDDING_QUERY_PREFIX", ""),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			LLMTemperature:     getEnvAsFloat("OPENAI_LLM_TEMPERATURE", 0.2),
			LLMMaxTokens:       getEnvAsInt("OPENAI_LLM_MAX_TOKENS", 1024),
		},
		Corpus: CorpusConfig{
			Dir: getEnv("CORPUS_DIR", "./data"),
		},
		OCR: OCRConfig{
			Language: getEnv("OCR_LANGUAGE", "eng"),
			DPI:      getEnvAsFloat("OCR_DPI", 300),
		},
		Chunker: ChunkerConfig{
			MaxTokens:       getEnvAsInt("CHUNKER_MAX_TOKENS", 400),
			QuestionPattern: getEnv("CHUNKER_QUESTION_PATTERN", `^\s*\d+[.,]\s+`),
		},
		Pipeline: PipelineConfig{
			DocumentWorkers:      getEnvAsInt("PIPELINE_DOCUMENT_WORKERS", 4),
			EmbeddingWorkers:     getEnvAsInt("PIPELINE_EMBEDDING_WORKERS", 8),
			EmbeddingBatchSize:   getEnvAsInt("PIPELINE_EMBEDDING_BATCH_SIZE", 100),
			FailOnEmbeddingError: getEnvAsBool("PIPELINE_FAIL_ON_EMBEDDING_ERROR", false),
		},
		Retrieval: RetrievalConfig{
			DefaultK: getEnvAsInt("RETRIEVAL_DEFAULT_K", 4),
		},
		Prompt: PromptConfig{
			MaxContextTokens: getEnvAsInt("PROMPT_MAX_CONTEXT_TOKENS", 4000),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
