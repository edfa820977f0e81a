package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"hotel_booking/internal/adapters/auth"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/shared"
)

func main() {
	userID := flag.String("user", "", "User ID placed in the sub claim")
	roleName := flag.String("role", "Guest", "Role: Guest, User, HotelManager or Admin")
	ttl := flag.Duration("ttl", 0, "Token lifetime (defaults to JWT_TTL_MINUTES)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	cfg := shared.Load()
	if *ttl > 0 {
		cfg.JWTTTL = *ttl
	}
	role, ok := domain.ParseRole(*roleName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *roleName)
		os.Exit(2)
	}

	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating token manager: %v\n", err)
		os.Exit(1)
	}
	token, err := tokens.Generate(*userID, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   int(cfg.JWTTTL.Seconds()),
			"user_id":      *userID,
			"role":         role,
		})
		return
	}
	fmt.Printf("User ID:  %s\n", *userID)
	fmt.Printf("Role:     %s\n", role)
	fmt.Printf("Expires:  %s\n", time.Now().Add(cfg.JWTTTL).UTC().Format(time.RFC3339))
	fmt.Printf("Token:    %s\n", token)
}
