package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/auth"
)

func main() {
	userID := flag.String("user", "", "User ID to put in the token")
	secret := flag.String("secret", "", "Signing secret (default: $JWT_SECRET)")
	ttl := flag.Duration("ttl", 7*24*time.Hour, "Token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: token -user <user-id> [-secret <secret>] [-ttl 24h]")
		fmt.Fprintln(os.Stderr, "  Reads JWT_SECRET from the environment or .env if -secret is not given")
		os.Exit(1)
	}

	_ = godotenv.Load()
	if *secret == "" {
		*secret = os.Getenv("JWT_SECRET")
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "No secret: set JWT_SECRET or pass -secret")
		os.Exit(1)
	}

	token, err := auth.NewIssuer(*secret).WithTTL(*ttl).Generate(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
