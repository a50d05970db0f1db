// Command tokengen prints a bearer token for the shelfd API, signed with the
// configured JWT secret. It is meant for operators and local testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/phrazzld/shelfd/internal/config"
	"github.com/phrazzld/shelfd/internal/service/auth"
)

func main() {
	name := flag.String("user", "", "user name the token is issued for")
	admin := flag.Bool("admin", false, "grant administrator rights")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration, if present")
	flag.Parse()

	token, err := generate(*envFile, auth.Principal{Name: *name, Admin: *admin})
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func generate(envFile string, p auth.Principal) (string, error) {
	if envFile != "" {
		// a missing file is fine, the environment may already be set
		_ = godotenv.Load(envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return "", err
	}
	return jwtService.GenerateToken(context.Background(), p)
}
