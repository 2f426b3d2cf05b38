package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "mongo", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, int64(10_000_000), cfg.Game.InitialSupply)
	assert.Equal(t, int64(150), cfg.Game.WorkoutReward)
	assert.Equal(t, 10, cfg.Game.WorkoutsPerLevel)
	assert.Equal(t, 30, cfg.Game.MilestoneInterval)
	assert.Equal(t, 90, cfg.Oracle.HeartRateBase)
	assert.False(t, cfg.S3.Enabled)
	assert.Len(t, cfg.Game.SeedWorkouts, 4)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
jwt:
  secret: file-secret
  expiration: 30m
database:
  driver: memory
kafka:
  brokers: ["k1:9092", "k2:9092"]
game:
  workout_reward: 200
  seed_workouts:
    - id: hiit-cardio-blast
      title: HIIT Cardio Blast
      duration: 20
      difficulty: 2
      points: 150
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(200), cfg.Game.WorkoutReward)
	require.Len(t, cfg.Game.SeedWorkouts, 1)
	assert.Equal(t, "hiit-cardio-blast", cfg.Game.SeedWorkouts[0].ID)
	assert.Equal(t, 2, cfg.Game.SeedWorkouts[0].Difficulty)
}

func TestValidate(t *testing.T) {
	base := Config{
		JWT:      JWTConfig{Secret: "s"},
		Database: DatabaseConfig{Driver: "memory"},
		Game: GameConfig{
			InitialSupply:     10,
			MaxSupply:         100,
			WorkoutReward:     1,
			WorkoutsPerLevel:  10,
			MilestoneInterval: 30,
		},
	}
	require.NoError(t, base.Validate())

	noSecret := base
	noSecret.JWT.Secret = ""
	assert.Error(t, noSecret.Validate())

	badDriver := base
	badDriver.Database.Driver = "postgres"
	assert.Error(t, badDriver.Validate())

	lowCap := base
	lowCap.Game.MaxSupply = 5
	assert.Error(t, lowCap.Validate())

	s3NoBucket := base
	s3NoBucket.S3.Enabled = true
	assert.Error(t, s3NoBucket.Validate())
}
