// Command admin-token prints a bearer token for the admin API.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"telegram-tts-bot/internal/config"
	"telegram-tts-bot/internal/infra/web"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	subject := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	token, err := web.NewAuthManager(cfg.Admin.JWTSecret, *ttl).Mint(*subject)
	if err != nil {
		log.Fatalf("mint: %v", err)
	}
	fmt.Println(token)
}
