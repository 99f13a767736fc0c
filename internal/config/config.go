package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Chrome   ChromeConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Charset  string
}

type JWTConfig struct {
	Secret     string
	ExpireTime int
}

type ChromeConfig struct {
	HeadlessReplay bool
	MaxSessions    int
}

// EngineConfig carries tunables that ship with sensible defaults and
// can also be changed at runtime through the settings API.
type EngineConfig struct {
	LearningMode        bool
	CoordinateFallback  bool
	RecordMouseMoves    bool
	MouseMoveIntervalMs int
	SimilarityThreshold float64
	DebugLogCapacity    int
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Mode:         getEnv("SERVER_MODE", "debug"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "3306"),
			Username: getEnv("DB_USERNAME", "root"),
			Password: getEnv("DB_PASSWORD", "root"),
			Database: getEnv("DB_NAME", "formflow"),
			Charset:  getEnv("DB_CHARSET", "utf8mb4"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "formflow-secret-key"),
			ExpireTime: getEnvAsInt("JWT_EXPIRE_TIME", 24*3600),
		},
		Chrome: ChromeConfig{
			HeadlessReplay: getEnvAsBool("CHROME_HEADLESS_REPLAY", true),
			MaxSessions:    getEnvAsInt("CHROME_MAX_SESSIONS", 10),
		},
		Engine: EngineConfig{
			LearningMode:        getEnvAsBool("ENGINE_LEARNING_MODE", true),
			CoordinateFallback:  getEnvAsBool("ENGINE_COORDINATE_FALLBACK", false),
			RecordMouseMoves:    getEnvAsBool("ENGINE_RECORD_MOUSE_MOVES", false),
			MouseMoveIntervalMs: getEnvAsInt("ENGINE_MOUSE_MOVE_INTERVAL_MS", 200),
			SimilarityThreshold: getEnvAsFloat("ENGINE_SIMILARITY_THRESHOLD", 0.5),
			DebugLogCapacity:    getEnvAsInt("ENGINE_DEBUG_LOG_CAPACITY", 200),
		},
	}

	return config, nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
