package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"h2hServer/auth"
	"h2hServer/config"
	"h2hServer/market"

	"github.com/ethereum/go-ethereum/common"
)

/* =========================
   REQUEST/RESPONSE TYPES
   Every mutation carries the auth envelope; uint64 amounts travel as
   decimal strings.
========================= */

type InitializeConfigRequest struct {
	auth.Request
	Denomination         string `json:"denomination"`
	BetSize              uint64 `json:"betSize,string"`
	JoinThresholdPercent uint16 `json:"joinThresholdPercent"`
	WinThresholdPercent  uint16 `json:"winThresholdPercent"`
	ThresholdDecimals    uint8  `json:"thresholdDecimals"`
}

type InitializePricesRequest struct {
	auth.Request
	InitialPrice uint64 `json:"initialPrice,string"`
	Decimals     uint8  `json:"decimals"`
}

type InitializeVaultRequest struct {
	auth.Request
	Denomination string `json:"denomination"`
}

type AddPriceRequest struct {
	auth.Request
	Price uint64 `json:"price,string"`
}

type CreateGameRequest struct {
	auth.Request
	Prediction bool `json:"prediction"`
}

type OperationResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	GameIndex  *uint32 `json:"gameIndex,omitempty"`
	PriceIndex *uint32 `json:"priceIndex,omitempty"`
	Payout     string  `json:"payout,omitempty"`
}

func decode(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, config.MaxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return badRequest{msg: "Invalid request body"}
	}
	return nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, badRequest{msg: fmt.Sprintf("Invalid %s address", field)}
	}
	return common.HexToAddress(s), nil
}

func parseIndex(r *http.Request) (uint32, error) {
	v, err := strconv.ParseUint(r.PathValue("index"), 10, 32)
	if err != nil {
		return 0, badRequest{msg: "Invalid game index"}
	}
	return uint32(v), nil
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func u32(v uint32) string { return strconv.FormatUint(uint64(v), 10) }

/* =========================
   INITIALIZATION ENDPOINTS
========================= */

// HandleInitializeConfig handles POST /api/config/init
func (s *Server) HandleInitializeConfig(w http.ResponseWriter, r *http.Request) {
	const op = "initializeConfig"
	var req InitializeConfigRequest
	if err := decode(r, &req); err != nil {
		s.sendFailure(w, op, err)
		return
	}
	denom, err := parseAddress("denomination", req.Denomination)
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}

	caller, err := s.verifier.Verify(r.Context(), req.Request, op,
		denom.Hex(), u64(req.BetSize),
		strconv.Itoa(int(req.JoinThresholdPercent)), strconv.Itoa(int(req.WinThresholdPercent)),
		strconv.Itoa(int(req.ThresholdDecimals)))
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}

	err = s.program.InitializeConfig(r.Context(), caller, market.ConfigArgs{
		Denomination:         denom,
		BetSize:              req.BetSize,
		JoinThresholdPercent: req.JoinThresholdPercent,
		WinThresholdPercent:  req.WinThresholdPercent,
		ThresholdDecimals:    req.ThresholdDecimals,
	})
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}
	sendJSON(w, http.StatusCreated, OperationResponse{Success: true, Message: "Config initialized"})
}

// HandleInitializePrices handles POST /api/prices/init
func (s *Server) HandleInitializePrices(w http.ResponseWriter, r *http.Request) {
	const op = "initializePrices"
	var req InitializePricesRequest
	if err := decode(r, &req); err != nil {
		s.sendFailure(w, op, err)
		return
	}

	caller, err := s.verifier.Verify(r.Context(), req.Request, op, u64(req.InitialPrice), strconv.Itoa(int(req.Decimals)))
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}
	if err := s.program.InitializePrices(r.Context(), caller, req.InitialPrice, req.Decimals); err != nil {
		s.sendFailure(w, op, err)
		return
	}
	zero := uint32(0)
	sendJSON(w, http.StatusCreated, OperationResponse{Success: true, Message: "Price feed initialized", PriceIndex: &zero})
}

// HandleInitializeGames handles POST /api/games/init
func (s *Server) HandleInitializeGames(w http.ResponseWriter, r *http.Request) {
	const op = "initializeGames"
	var req auth.Request
	if err := decode(r, &req); err != nil {
		s.sendFailure(w, op, err)
		return
	}

	caller, err := s.verifier.Verify(r.Context(), req, op)
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}
	if err := s.program.InitializeGames(r.Context(), caller); err != nil {
		s.sendFailure(w, op, err)
		return
	}
	sendJSON(w, http.StatusCreated, OperationResponse{Success: true, Message: "Game ledger initialized"})
}

// HandleInitializeVault handles POST /api/vault/init
func (s *Server) HandleInitializeVault(w http.ResponseWriter, r *http.Request) {
	const op = "initializeVault"
	var req InitializeVaultRequest
	if err := decode(r, &req); err != nil {
		s.sendFailure(w, op, err)
		return
	}
	denom, err := parseAddress("denomination", req.Denomination)
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}

	caller, err := s.verifier.Verify(r.Context(), req.Request, op, denom.Hex())
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}
	if err := s.program.InitializeVault(r.Context(), caller, denom); err != nil {
		s.sendFailure(w, op, err)
		return
	}
	sendJSON(w, http.StatusCreated, OperationResponse{Success: true, Message: "Vault initialized"})
}

/* =========================
   MARKET ENDPOINTS
========================= */

// HandleAddPrice handles POST /api/prices
func (s *Server) HandleAddPrice(w http.ResponseWriter, r *http.Request) {
	const op = "addPrice"
	var req AddPriceRequest
	if err := decode(r, &req); err != nil {
		s.sendFailure(w, op, err)
		return
	}

	caller, err := s.verifier.Verify(r.Context(), req.Request, op, u64(req.Price))
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}
	index, err := s.program.AddPrice(r.Context(), caller, req.Price)
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}
	sendJSON(w, http.StatusCreated, OperationResponse{Success: true, Message: "Price added", PriceIndex: &index})
}

// HandleCreateGame handles POST /api/games
func (s *Server) HandleCreateGame(w http.ResponseWriter, r *http.Request) {
	const op = "createGame"
	var req CreateGameRequest
	if err := decode(r, &req); err != nil {
		s.sendFailure(w, op, err)
		return
	}

	caller, err := s.verifier.Verify(r.Context(), req.Request, op, strconv.FormatBool(req.Prediction))
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}
	index, err := s.program.CreateGame(r.Context(), caller, req.Prediction)
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}
	sendJSON(w, http.StatusCreated, OperationResponse{Success: true, Message: "Game created", GameIndex: &index})
}

// gameAction verifies a signed request naming a game index.
func (s *Server) gameAction(w http.ResponseWriter, r *http.Request, op string) (common.Address, uint32, bool) {
	index, err := parseIndex(r)
	if err != nil {
		s.sendFailure(w, op, err)
		return common.Address{}, 0, false
	}
	var req auth.Request
	if err := decode(r, &req); err != nil {
		s.sendFailure(w, op, err)
		return common.Address{}, 0, false
	}
	caller, err := s.verifier.Verify(r.Context(), req, op, u32(index))
	if err != nil {
		s.sendFailure(w, op, err)
		return common.Address{}, 0, false
	}
	return caller, index, true
}

// HandleJoinGame handles POST /api/games/{index}/join
func (s *Server) HandleJoinGame(w http.ResponseWriter, r *http.Request) {
	const op = "joinGame"
	caller, index, ok := s.gameAction(w, r, op)
	if !ok {
		return
	}
	if err := s.program.JoinGame(r.Context(), caller, index); err != nil {
		s.sendFailure(w, op, err)
		return
	}
	sendJSON(w, http.StatusOK, OperationResponse{Success: true, Message: "Joined game", GameIndex: &index})
}

// HandleWithdrawFromGame handles POST /api/games/{index}/withdraw
func (s *Server) HandleWithdrawFromGame(w http.ResponseWriter, r *http.Request) {
	const op = "withdrawFromGame"
	caller, index, ok := s.gameAction(w, r, op)
	if !ok {
		return
	}
	if err := s.program.WithdrawFromGame(r.Context(), caller, index); err != nil {
		s.sendFailure(w, op, err)
		return
	}
	sendJSON(w, http.StatusOK, OperationResponse{Success: true, Message: "Stake withdrawn", GameIndex: &index})
}

// HandleClaimWinnings handles POST /api/games/{index}/claim
func (s *Server) HandleClaimWinnings(w http.ResponseWriter, r *http.Request) {
	const op = "claimWinnings"
	caller, index, ok := s.gameAction(w, r, op)
	if !ok {
		return
	}
	paid, err := s.program.ClaimWinnings(r.Context(), caller, index)
	if err != nil {
		s.sendFailure(w, op, err)
		return
	}
	sendJSON(w, http.StatusOK, OperationResponse{
		Success:   true,
		Message:   "Winnings claimed",
		GameIndex: &index,
		Payout:    u64(paid),
	})
}
