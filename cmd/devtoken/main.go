// Command devtoken prints a bearer token for local testing of the premium API.
//
//	go run ./cmd/devtoken -user 6f1c2b9e-3a4d-4e5f-8a7b-9c0d1e2f3a4b -role pro
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/linksight/linksight/internal"
	"github.com/linksight/linksight/internal/auth"
	"github.com/linksight/linksight/internal/domain"
)

func run(args []string) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	userFlag := fs.String("user", "", "user id (uuid) to put in the sub claim")
	roleFlag := fs.String("role", string(domain.RoleFree), "role claim: free, pro or business")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		return fmt.Errorf("-user must be a uuid: %w", err)
	}
	if *ttl <= 0 || *ttl > 30*24*time.Hour {
		return fmt.Errorf("-ttl must be between 0 and 720h, got %s", *ttl)
	}

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	if !cfg.IsDevelopment() {
		return fmt.Errorf("devtoken refuses to run with ENV=%s", cfg.Env)
	}

	token, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer).Issue(userID, domain.ParseRole(*roleFlag), *ttl)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
