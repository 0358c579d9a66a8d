package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"h2hServer/config"
	"h2hServer/leaderboard"
	"h2hServer/market"
)

/* =========================
   QUERY ENDPOINTS
========================= */

// HandleGetConfig handles GET /api/config
func (s *Server) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.program.Config(r.Context())
	if err != nil {
		s.sendFailure(w, "getConfig", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "config": cfg})
}

// HandleGetPrices handles GET /api/prices
func (s *Server) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	feed, err := s.program.PriceFeed(r.Context())
	if err != nil {
		s.sendFailure(w, "getPrices", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"decimals": feed.Decimals,
		"prices":   formatAmounts(feed.Prices),
		"count":    len(feed.Prices),
	})
}

// HandleGetLatestPrice handles GET /api/prices/latest
func (s *Server) HandleGetLatestPrice(w http.ResponseWriter, r *http.Request) {
	index, price, decimals, err := s.program.CurrentPrice(r.Context())
	if err != nil {
		s.sendFailure(w, "getLatestPrice", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"index":    index,
		"price":    strconv.FormatUint(price, 10),
		"decimals": decimals,
	})
}

// formatAmounts renders amounts as decimal strings so clients keep full
// uint64 precision.
func formatAmounts(values []uint64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatUint(v, 10)
	}
	return out
}

type gameView struct {
	Index  uint32            `json:"index"`
	Status market.GameStatus `json:"status"`
	market.Game
}

// HandleGetGames handles GET /api/games?offset=&limit=
func (s *Server) HandleGetGames(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		s.sendFailure(w, "getGames", err)
		return
	}

	total, err := s.program.GameCount(r.Context())
	if err != nil {
		s.sendFailure(w, "getGames", err)
		return
	}
	games, err := s.program.Games(r.Context(), offset, limit)
	if err != nil {
		s.sendFailure(w, "getGames", err)
		return
	}

	views := make([]gameView, 0, len(games))
	for i, g := range games {
		views = append(views, gameView{Index: offset + uint32(i), Status: g.Status(), Game: g})
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"games":   views,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
	})
}

// HandleGetGame handles GET /api/games/{index}
func (s *Server) HandleGetGame(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		s.sendFailure(w, "getGame", err)
		return
	}
	outlook, err := s.program.Outlook(r.Context(), index)
	if err != nil {
		s.sendFailure(w, "getGame", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "game": outlook})
}

// HandleGetVault handles GET /api/vault
func (s *Server) HandleGetVault(w http.ResponseWriter, r *http.Request) {
	vault, balance, err := s.program.Vault(r.Context())
	if err != nil {
		s.sendFailure(w, "getVault", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"vault":   vault,
		"balance": strconv.FormatUint(balance, 10),
	})
}

// HandleGetBalance handles GET /api/balances/{address}
func (s *Server) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress("account", r.PathValue("address"))
	if err != nil {
		s.sendFailure(w, "getBalance", err)
		return
	}
	balance, err := s.program.Balance(r.Context(), account)
	if err != nil {
		s.sendFailure(w, "getBalance", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"address": account,
		"balance": strconv.FormatUint(balance, 10),
	})
}

// HandleGetLeaderboard handles GET /api/leaderboard?limit=&address=
func (s *Server) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.board == nil {
		sendJSON(w, http.StatusOK, map[string]any{"success": true, "entries": []leaderboard.Entry{}})
		return
	}
	_, limit, err := pageParams(r)
	if err != nil {
		s.sendFailure(w, "getLeaderboard", err)
		return
	}

	resp := map[string]any{
		"success": true,
		"entries": s.board.Top(int(limit)),
	}
	if q := r.URL.Query().Get("address"); q != "" {
		addr, err := parseAddress("account", q)
		if err != nil {
			s.sendFailure(w, "getLeaderboard", err)
			return
		}
		if entry, ok := s.board.Position(addr); ok {
			resp["position"] = entry
		}
	}
	sendJSON(w, http.StatusOK, resp)
}

// HandleHealthCheck handles GET /api/health
func (s *Server) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.health))
	healthy := true
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	resp := map[string]any{
		"success": healthy,
		"status":  "healthy",
		"checks":  checks,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if s.hub != nil {
		resp["wsClients"] = s.hub.Clients()
	}
	if !healthy {
		resp["status"] = "degraded"
		sendJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	sendJSON(w, http.StatusOK, resp)
}

// pageParams reads offset and limit, applying the default and cap.
func pageParams(r *http.Request) (uint32, uint32, error) {
	q := r.URL.Query()
	offset, limit := uint64(0), uint64(config.DefaultPageLimit)

	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, 0, badRequest{msg: "Invalid offset"}
		}
		offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return 0, 0, badRequest{msg: "Invalid limit"}
		}
		limit = min(n, config.MaxPageLimit)
	}
	return uint32(offset), uint32(limit), nil
}
