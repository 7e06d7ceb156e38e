package utils

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig loads the .env file (if present) and wires viper to read from
// the environment. Missing .env is not an error; production deployments set
// real environment variables instead.
func LoadConfig(path string) {
	_ = godotenv.Load(filepath.Join(path, ".env"))

	viper.AutomaticEnv()
}
