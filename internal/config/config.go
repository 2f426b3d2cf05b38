package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	S3        S3Config        `mapstructure:"s3"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Game      GameConfig      `mapstructure:"game"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"` // gin mode: debug, release, test
}

type DatabaseConfig struct {
	// Driver selects the persistence backend: "mongo" or "memory" (local dev only).
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// KafkaConfig configures the domain event publisher. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// AdminConfig seeds the first administrator account on startup.
type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// GameConfig holds the progression rules. Token amounts are whole CRUSH.
type GameConfig struct {
	InitialSupply     int64         `mapstructure:"initial_supply"`
	MaxSupply         int64         `mapstructure:"max_supply"`
	WorkoutReward     int64         `mapstructure:"workout_reward"`
	WorkoutsPerLevel  int           `mapstructure:"workouts_per_level"`
	MilestoneInterval int           `mapstructure:"milestone_interval"`
	StreakResetAfter  time.Duration `mapstructure:"streak_reset_after"`
	SeedWorkouts      []SeedWorkout `mapstructure:"seed_workouts"`
}

// SeedWorkout is a catalog entry registered as a valid workout at startup.
type SeedWorkout struct {
	ID         string `mapstructure:"id"`
	Title      string `mapstructure:"title"`
	Duration   int    `mapstructure:"duration"`
	Difficulty int    `mapstructure:"difficulty"`
	Points     int    `mapstructure:"points"`
}

// DefaultSeedWorkouts is the catalog shipped with the app.
func DefaultSeedWorkouts() []SeedWorkout {
	return []SeedWorkout{
		{ID: "hiit-cardio-blast", Title: "HIIT Cardio Blast", Duration: 20, Difficulty: 2, Points: 150},
		{ID: "strength-upper-body", Title: "Upper Body Power", Duration: 35, Difficulty: 2, Points: 200},
		{ID: "core-crusher", Title: "Core Crusher", Duration: 15, Difficulty: 1, Points: 100},
		{ID: "leg-day-beast", Title: "Leg Day Beast", Duration: 40, Difficulty: 3, Points: 250},
	}
}

// OracleConfig holds the fitness verification thresholds.
type OracleConfig struct {
	RequireSubmission      bool `mapstructure:"require_submission"`
	HeartRateBase          int  `mapstructure:"heart_rate_base"`
	HeartRatePerDifficulty int  `mapstructure:"heart_rate_per_difficulty"`
	CaloriesPerMinute      int  `mapstructure:"calories_per_minute"`
	StepsPerMinute         int  `mapstructure:"steps_per_minute"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// No file: defaults and env vars only.
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	// AutomaticEnv does not split list values coming from the environment.
	if len(config.Kafka.Brokers) == 1 && strings.Contains(config.Kafka.Brokers[0], ",") {
		config.Kafka.Brokers = splitAndTrim(config.Kafka.Brokers[0])
	}

	if len(config.Game.SeedWorkouts) == 0 {
		config.Game.SeedWorkouts = DefaultSeedWorkouts()
	}

	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "wodgachi")
	// Keys without a default are invisible to Unmarshal when only set via env.
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("admin.name", "admin")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "wodgachi.events")

	v.SetDefault("game.initial_supply", 10_000_000)
	v.SetDefault("game.max_supply", 100_000_000)
	v.SetDefault("game.workout_reward", 150)
	v.SetDefault("game.workouts_per_level", 10)
	v.SetDefault("game.milestone_interval", 30)
	v.SetDefault("game.streak_reset_after", "0s")

	v.SetDefault("oracle.require_submission", false)
	v.SetDefault("oracle.heart_rate_base", 90)
	v.SetDefault("oracle.heart_rate_per_difficulty", 10)
	v.SetDefault("oracle.calories_per_minute", 2)
	v.SetDefault("oracle.steps_per_minute", 20)

	v.SetDefault("rate_limit.requests_per_second", 5)
	v.SetDefault("rate_limit.burst", 10)
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.Database.Driver != "mongo" && c.Database.Driver != "memory" {
		return errors.New("config: database.driver must be mongo or memory")
	}
	g := c.Game
	if g.InitialSupply <= 0 || g.WorkoutReward <= 0 || g.WorkoutsPerLevel <= 0 || g.MilestoneInterval <= 0 {
		return errors.New("config: game values must be positive")
	}
	if g.MaxSupply < g.InitialSupply {
		return errors.New("config: game.max_supply must not be lower than game.initial_supply")
	}
	if c.S3.Enabled && c.S3.BucketName == "" {
		return errors.New("config: s3.bucket_name is required when s3 is enabled")
	}
	return nil
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
