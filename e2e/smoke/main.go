package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/astro-web3/codeveros-auth/pkg/session"
	"github.com/google/uuid"
)

func main() {
	gatewayURL := "http://localhost:8080"
	if len(os.Args) > 1 {
		gatewayURL = os.Args[1]
	} else if env := os.Getenv("CODEVEROS_GATEWAY_URL"); env != "" {
		gatewayURL = env
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	username := "smoke-" + uuid.NewString()[:8]
	password := "smoke-" + uuid.NewString()

	s := session.New(gatewayURL)

	ok, err := s.Register(ctx, map[string]any{
		"username":  username,
		"password":  password,
		"firstName": "Smoke",
		"lastName":  "Test",
		"email":     username + "@example.com",
	})
	if err != nil || !ok {
		log.Fatalf("❌ Register failed: %v", err)
	}
	fmt.Printf("✅ Registered %s (id: %s)\n", username, s.User().ID())

	if err = s.Logout(ctx); err != nil {
		log.Fatalf("❌ Logout after register failed: %v", err)
	}

	ok, err = s.Login(ctx, username, password)
	if err != nil || !ok {
		log.Fatalf("❌ Login failed: %v", err)
	}
	fmt.Printf("✅ Logged in, token length: %d characters\n", len(s.Token()))

	if !s.IsLoggedIn(ctx) {
		log.Fatalf("❌ Session not recognized as logged in")
	}
	fmt.Println("✅ Session is logged in")

	resp, err := s.AuthorizedRequest(ctx, http.MethodGet, "/api/user/"+s.User().ID())
	if err != nil {
		log.Fatalf("❌ Proxied request failed: %v", err)
	}
	if resp.StatusCode() == http.StatusOK {
		fmt.Println("✅ Proxied /api/user request ALLOWED")
	} else {
		fmt.Printf("❌ Proxied /api/user request returned %d\n", resp.StatusCode())
		fmt.Printf("   Response: %s\n", resp.String())
	}

	token := s.Token()
	if err = s.Logout(ctx); err != nil {
		log.Fatalf("❌ Logout failed: %v", err)
	}
	fmt.Println("✅ Logged out")

	anon := session.New(gatewayURL, session.WithStore(storeWith(token)))
	if anon.IsLoggedIn(ctx) {
		fmt.Println("⚠️  Old token still accepted (revocation disabled?)")
	} else {
		fmt.Println("✅ Old token rejected after logout")
	}
}

func storeWith(token string) session.Store {
	store := session.NewMemoryStore()
	store.SetToken(token)
	return store
}
