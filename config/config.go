package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port            int
	HostURL         string // Public base URL used to build <Play> links for generated audio
	GeminiAPIKey    string
	GeminiModel     string
	ModelTimeout    time.Duration
	SessionBackend  string // "memory" or "redis"
	RedisURL        string
	RedisPassword   string
	SessionTimeout  time.Duration // 0 keeps sessions until explicitly cleared
	MaxHistory      int           // Maximum messages kept per call
	DatabasePath    string
	HotelConfigPath string
	StaticDir       string
	AudioRetention  time.Duration
	AllowedOrigins  []string
	GatherLanguage  string
	DefaultVoice    string

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	StaffPhone       string
	FrontDeskNumber  string
	NotifyWorkers    int

	LogLevel  string
	LogFormat string // "console" or "json"

	DemoGuestPhone string
	DemoGuestName  string
	DemoRoom       string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:              8080,
		HostURL:           "http://localhost:8080",
		GeminiModel:       "gemini-2.5-flash",
		ModelTimeout:      8 * time.Second,
		SessionBackend:    "memory",
		RedisURL:          "localhost:6379",
		SessionTimeout:    0,
		MaxHistory:        40,
		DatabasePath:      "data/hotel.db",
		HotelConfigPath:   "hotel.yaml",
		StaticDir:         "static",
		AudioRetention:    30 * time.Minute,
		AllowedOrigins:    []string{"*"},
		GatherLanguage:    "en-US",
		DefaultVoice:      "Google.en-US-Neural2-F",
		ElevenLabsVoiceID: "21m00Tcm4TlvDq8ikWAM",
		NotifyWorkers:     4,
		LogLevel:          "info",
		LogFormat:         "console",
		DemoGuestName:     "Demo Guest",
		DemoRoom:          "402",
	}

	// Required: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	if hostURL := os.Getenv("HOST_URL"); hostURL != "" {
		config.HostURL = strings.TrimRight(hostURL, "/")
	}

	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.GeminiModel = model
	}

	// Optional: MODEL_TIMEOUT (in seconds)
	if timeout := os.Getenv("MODEL_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid MODEL_TIMEOUT: %w", err)
		}
		if t <= 0 {
			return nil, fmt.Errorf("invalid MODEL_TIMEOUT: must be positive")
		}
		config.ModelTimeout = time.Duration(t) * time.Second
	}

	// Optional: SESSION_BACKEND ("memory" or "redis")
	if backend := os.Getenv("SESSION_BACKEND"); backend != "" {
		switch backend {
		case "memory", "redis":
			config.SessionBackend = backend
		default:
			return nil, fmt.Errorf("invalid SESSION_BACKEND: must be 'memory' or 'redis'")
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: SESSION_IDLE_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_IDLE_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_IDLE_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	if maxHistory := os.Getenv("MAX_HISTORY"); maxHistory != "" {
		m, err := strconv.Atoi(maxHistory)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_HISTORY: %w", err)
		}
		// one message can never hold a user/assistant pair
		if m < 0 || m == 1 {
			return nil, fmt.Errorf("invalid MAX_HISTORY: must be 0 (unbounded) or at least 2")
		}
		config.MaxHistory = m
	}

	if path := os.Getenv("DATABASE_PATH"); path != "" {
		config.DatabasePath = path
	}
	if path := os.Getenv("HOTEL_CONFIG"); path != "" {
		config.HotelConfigPath = path
	}
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		config.StaticDir = dir
	}

	// Optional: AUDIO_RETENTION (in minutes)
	if retention := os.Getenv("AUDIO_RETENTION"); retention != "" {
		r, err := strconv.Atoi(retention)
		if err != nil {
			return nil, fmt.Errorf("invalid AUDIO_RETENTION: %w", err)
		}
		config.AudioRetention = time.Duration(r) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	if lang := os.Getenv("GATHER_LANGUAGE"); lang != "" {
		config.GatherLanguage = lang
	}
	if voice := os.Getenv("DEFAULT_VOICE"); voice != "" {
		config.DefaultVoice = voice
	}

	config.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	if voiceID := os.Getenv("ELEVENLABS_VOICE_ID"); voiceID != "" {
		config.ElevenLabsVoiceID = voiceID
	}

	config.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	config.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	config.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	config.StaffPhone = os.Getenv("STAFF_PHONE")
	config.FrontDeskNumber = os.Getenv("FRONT_DESK_NUMBER")

	if workers := os.Getenv("NOTIFY_WORKERS"); workers != "" {
		w, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_WORKERS: %w", err)
		}
		if w < 1 {
			return nil, fmt.Errorf("invalid NOTIFY_WORKERS: must be at least 1")
		}
		config.NotifyWorkers = w
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}

	// Optional: LOG_FORMAT ("console" or "json")
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		switch format {
		case "console", "json":
			config.LogFormat = format
		default:
			return nil, fmt.Errorf("invalid LOG_FORMAT: must be 'console' or 'json'")
		}
	}

	config.DemoGuestPhone = os.Getenv("DEMO_GUEST_PHONE")
	if name := os.Getenv("DEMO_GUEST_NAME"); name != "" {
		config.DemoGuestName = name
	}
	if room := os.Getenv("DEMO_ROOM"); room != "" {
		config.DemoRoom = room
	}

	return config, nil
}

// SMSEnabled reports whether Twilio credentials for outbound SMS are present.
func (c *Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}
