package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings read from the environment.
// Camera definitions live in a separate YAML file (see CameraFile).
type Config struct {
	Port            int
	Password        string
	CamerasConfig   string // Path to the cameras YAML file
	DatabasePath    string
	LogDirectory    string
	LogLevel        string
	PreviewWidth    int // Width of the encoded preview, 0 keeps the source width
	PreviewQuality  int // JPEG quality of the preview
	CaptureQuality  int // JPEG quality of frames handed over by the capture source
	NatsURL         string
	NatsSubject     string
	ShutdownTimeout int // Seconds
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	// A missing .env is fine, the process environment is used as is.
	_ = godotenv.Load()

	return &Config{
		Port:            getEnvAsInt("PORT", 5000),
		Password:        getEnv("PASSWORD", "changeme"),
		CamerasConfig:   getEnv("CAMERAS_CONFIG", filepath.Join(".", "configs", "cameras.yaml")),
		DatabasePath:    getEnv("DB_PATH", filepath.Join(".", "data", "snapshots.db")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		PreviewWidth:    getEnvAsInt("PREVIEW_WIDTH", 640),
		PreviewQuality:  getEnvAsInt("PREVIEW_QUALITY", 80),
		CaptureQuality:  getEnvAsInt("CAPTURE_QUALITY", 95),
		NatsURL:         getEnv("NATS_URL", ""),
		NatsSubject:     getEnv("NATS_SUBJECT", "snapshots"),
		ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 5),
	}
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
