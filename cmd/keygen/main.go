package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/genai-gateway/internal/auth"
	"github.com/tjfontaine/genai-gateway/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: keygen [-config config.yaml] [-ttl 720h] <subject-email>")
		fmt.Fprintln(os.Stderr, "Mints a bearer token for the gateway API. The subject becomes the caller identity.")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	subject := flag.Arg(0)

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	var opts []auth.Option
	if cfg.Auth.Issuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.Auth.Issuer))
	}
	a, err := auth.NewAuthenticator([]byte(cfg.Auth.JWTSecret), opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create authenticator: %v\n", err)
		os.Exit(1)
	}

	token, err := a.Issue(subject, auth.AudienceAPI, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Expires: %s\n", time.Now().Add(*ttl).UTC().Format(time.RFC3339))
	fmt.Printf("Token: %s\n", token)
	fmt.Println("\nSend it as:")
	fmt.Printf("  Authorization: Bearer %s\n", token)
}
