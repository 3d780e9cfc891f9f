// Command devserver runs the in-memory study-content service for local development.
//
// It registers the users named by -users, prints a bearer token for each, and
// serves until interrupted:
//
//	devserver -users ada@example.com,grace@example.com
//	studydeck login <token>
//
// Without STUDYDECK_DEV_SECRET a random signing secret is generated, so printed
// tokens only work against this process.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sakif/studydeck/internal/auth"
	"github.com/sakif/studydeck/internal/config"
	"github.com/sakif/studydeck/internal/fakeremote"
	"github.com/sakif/studydeck/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	users := flag.String("users", "dev@example.com", "comma-separated emails to register")
	ttl := flag.Duration("token-ttl", 12*time.Hour, "lifetime of the printed tokens")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	secret := cfg.DevSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("STUDYDECK_DEV_SECRET not set; tokens are valid for this process only")
	}
	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		logger.Error("invalid dev secret", slog.String("error", err.Error()))
		os.Exit(1)
	}

	remote := fakeremote.New(tokens, logger)
	for _, email := range strings.Split(*users, ",") {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		tok, id, err := remote.Token(email, *ttl)
		if err != nil {
			logger.Error("issuing token", slog.String("email", email), slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("user %d %s\n  %s\n", id, email, tok)
	}

	srv := server.New(server.Config{Port: cfg.DevPort}, remote, logger)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
