// Package api provides the HTTP layer over the negotiation core.
// GET endpoints are public (read-only observation); the chat endpoint is
// rate-limited per IP because free-form turns consume LLM calls.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/electro-bazaar/internal/bazaar"
	"github.com/talgya/electro-bazaar/internal/shop"
)

// Server serves the marketplace over HTTP.
type Server struct {
	Core *bazaar.Core
	Port int
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Free-form turns burn LLM calls; keep chat bounded per IP.
	chatLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/chat", RateLimitMiddleware(chatLimiter, s.handleChat))
	mux.HandleFunc("/api/v1/market", s.handleMarket)
	mux.HandleFunc("/api/v1/shops", s.handleShops)
	mux.HandleFunc("/api/v1/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/v1/portfolio/reset", s.handleReset)
	mux.HandleFunc("/api/v1/inventory", s.handleInventory)
	mux.HandleFunc("/api/v1/transactions", s.handleTransactions)

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// chatRequest is one inbound negotiation message. An empty session_id starts
// a new session; the assigned id comes back in the response.
type chatRequest struct {
	SessionID   string `json:"session_id"`
	ShopID      int    `json:"shop_id"`
	UserMessage string `json:"user_message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		http.Error(w, "user_message is required", http.StatusBadRequest)
		return
	}
	// Guard the uint8 conversion: 257 must not silently alias shop 1.
	if req.ShopID < 0 || req.ShopID > math.MaxUint8 {
		http.Error(w, fmt.Sprintf("unknown shop id %d", req.ShopID), http.StatusBadRequest)
		return
	}

	result, err := s.Core.EvaluateMessage(req.SessionID, shop.ID(req.ShopID), req.UserMessage)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Core.MarketSnapshot())
}

func (s *Server) handleShops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"shops": s.Core.Shops().All()})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	summary, err := s.Core.PortfolioSummary(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, summary)
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	line, err := s.Core.InventoryLine(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"items": line})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.Core.ResetPortfolio(req.SessionID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "reset"})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	rows, err := s.Core.RecentTransactions(limit)
	if err != nil {
		slog.Error("transactions query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"transactions": rows})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}
