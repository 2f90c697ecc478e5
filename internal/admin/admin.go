// Package admin serves the operator HTTP API.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"roulette-server/internal/model"
	"roulette-server/internal/repository"
	"roulette-server/internal/room"
	"roulette-server/internal/service"
)

const (
	defaultUpcoming = 5
	maxUpcoming     = 100
	defaultLimit    = 50
	maxLimit        = 500
)

// Rooms looks up live rooms.
type Rooms interface {
	List() []*room.Room
	Get(id string) (*room.Room, bool)
}

// Wallet credits players outside of play.
type Wallet interface {
	Credit(ctx context.Context, playerID int64, amount int64) (room.BalanceChange, error)
}

// Failures lists and resolves settlement calls that need manual attention.
type Failures interface {
	ListUnresolved(ctx context.Context, limit int) ([]*model.SettlementFailure, error)
	Resolve(ctx context.Context, id int64) error
}

// Transactions reads a player's balance history.
type Transactions interface {
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
	GetByUserIDAndType(ctx context.Context, userID int64, txType string, limit int) ([]*model.Transaction, error)
	SumByUser(ctx context.Context, userID int64, txTypes ...string) (int64, error)
}

// History reads settled rounds and finished tournaments.
type History interface {
	GetRoundsByPlayer(ctx context.Context, playerID int64, limit int) ([]*model.RoundRecord, error)
	GetRoundsByTournament(ctx context.Context, tournamentID string) ([]*model.RoundRecord, error)
	GetTournament(ctx context.Context, tournamentID string) (*model.TournamentRecord, error)
}

// HandlerDeps are the collaborators of the admin API. Everything but Rooms may
// be nil when no database is attached; those endpoints then answer 501.
type HandlerDeps struct {
	Rooms        Rooms
	Wallet       Wallet
	Failures     Failures
	Transactions Transactions
	History      History
	Token        string
	Origins      []string
}

// Handler serves the admin API.
type Handler struct {
	rooms    Rooms
	wallet   Wallet
	failures Failures
	txs      Transactions
	history  History
	token    string
	origins  []string
}

// NewHandler creates the admin API.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		rooms:    deps.Rooms,
		wallet:   deps.Wallet,
		failures: deps.Failures,
		txs:      deps.Transactions,
		history:  deps.History,
		token:    deps.Token,
		origins:  deps.Origins,
	}
}

// Routes returns the admin router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	origins := h.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         60 * 15,
	}))
	r.Use(h.authenticate)

	r.Route("/rooms", func(rr chi.Router) {
		rr.Get("/", h.ListRooms)
		rr.Get("/{roomID}", h.GetRoom)
		rr.Get("/{roomID}/upcoming", h.Upcoming)
		rr.Post("/{roomID}/start", h.StartTournament)
	})
	r.Route("/players/{playerID}", func(rr chi.Router) {
		rr.Get("/transactions", h.PlayerTransactions)
		rr.Get("/rounds", h.PlayerRounds)
		rr.Post("/credit", h.Credit)
	})
	r.Get("/tournaments/{tournamentID}", h.GetTournament)
	r.Route("/settlement-failures", func(rr chi.Router) {
		rr.Get("/", h.ListFailures)
		rr.Post("/{failureID}/resolve", h.ResolveFailure)
	})

	return r
}

// authenticate checks the bearer token when one is configured.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type roomSummary struct {
	RoomID  string     `json:"room_id"`
	Mode    room.Mode  `json:"mode"`
	State   room.State `json:"state"`
	Round   int        `json:"round"`
	Players int        `json:"players"`
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.rooms.List()
	out := make([]roomSummary, 0, len(rooms))
	for _, rm := range rooms {
		snap := rm.Snapshot()
		out = append(out, roomSummary{
			RoomID:  snap.RoomID,
			Mode:    snap.Mode,
			State:   snap.State,
			Round:   snap.Round,
			Players: len(snap.Players),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rm.Snapshot())
}

func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.room(w, r)
	if !ok {
		return
	}
	count, err := queryInt(r, "count", defaultUpcoming)
	if err != nil || count < 1 || count > maxUpcoming {
		writeError(w, http.StatusBadRequest, "invalid_count", "count must be between 1 and "+strconv.Itoa(maxUpcoming))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":  rm.ID,
		"outcomes": rm.PeekUpcoming(count),
	})
}

func (h *Handler) StartTournament(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.room(w, r)
	if !ok {
		return
	}
	if err := rm.StartTournament(r.Context()); err != nil {
		writeRoomError(w, err)
		return
	}
	log.Info().Str("room_id", rm.ID).Msg("Tournament started by operator")
	writeJSON(w, http.StatusOK, rm.Snapshot())
}

type creditRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		writeError(w, http.StatusNotImplemented, "no_wallet", "no wallet attached")
		return
	}
	playerID, ok := pathPlayer(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	change, err := h.wallet.Credit(r.Context(), playerID, req.Amount)
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	case err != nil:
		log.Error().Err(err).Int64("player_id", playerID).Msg("Failed to credit player")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	log.Info().Int64("player_id", playerID).Int64("amount", req.Amount).Msg("Player credited")
	writeJSON(w, http.StatusOK, change)
}

// playerHistory is a player's recent transactions, optionally of one type, with
// the net result of play.
type playerHistory struct {
	PlayerID      int64                `json:"player_id"`
	RouletteNet   int64                `json:"roulette_net"`
	TournamentNet int64                `json:"tournament_net"`
	Transactions  []*model.Transaction `json:"transactions"`
}

func (h *Handler) PlayerTransactions(w http.ResponseWriter, r *http.Request) {
	if h.txs == nil {
		writeError(w, http.StatusNotImplemented, "no_database", "no database attached")
		return
	}
	playerID, ok := pathPlayer(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit < 1 || limit > maxLimit {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and "+strconv.Itoa(maxLimit))
		return
	}

	txType := r.URL.Query().Get("type")
	if txType != "" && !slices.Contains(model.TxTypes, txType) {
		writeError(w, http.StatusBadRequest, "invalid_type", "unknown transaction type "+strconv.Quote(txType))
		return
	}

	out := playerHistory{PlayerID: playerID}
	if txType != "" {
		out.Transactions, err = h.txs.GetByUserIDAndType(r.Context(), playerID, txType, limit)
	} else {
		out.Transactions, err = h.txs.GetByUserID(r.Context(), playerID, limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if out.RouletteNet, err = h.txs.SumByUser(r.Context(), playerID,
		model.TxTypeRouletteBet, model.TxTypeRouletteWin); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if out.TournamentNet, err = h.txs.SumByUser(r.Context(), playerID,
		model.TxTypeTournamentEntry, model.TxTypeTournamentRefund, model.TxTypeTournamentPrize); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if out.Transactions == nil {
		out.Transactions = []*model.Transaction{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) PlayerRounds(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "no_database", "no database attached")
		return
	}
	playerID, ok := pathPlayer(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit < 1 || limit > maxLimit {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and "+strconv.Itoa(maxLimit))
		return
	}
	rounds, err := h.history.GetRoundsByPlayer(r.Context(), playerID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if rounds == nil {
		rounds = []*model.RoundRecord{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

type tournamentDetail struct {
	*model.TournamentRecord
	RoundRecords []*model.RoundRecord `json:"round_records"`
}

func (h *Handler) GetTournament(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "no_database", "no database attached")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "tournamentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "tournament id must be a uuid")
		return
	}

	rec, err := h.history.GetTournament(r.Context(), id.String())
	switch {
	case errors.Is(err, repository.ErrTournamentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	rounds, err := h.history.GetRoundsByTournament(r.Context(), rec.TournamentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if rounds == nil {
		rounds = []*model.RoundRecord{}
	}
	writeJSON(w, http.StatusOK, tournamentDetail{TournamentRecord: rec, RoundRecords: rounds})
}

func (h *Handler) ListFailures(w http.ResponseWriter, r *http.Request) {
	if h.failures == nil {
		writeError(w, http.StatusNotImplemented, "no_database", "no database attached")
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit < 1 || limit > maxLimit {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and "+strconv.Itoa(maxLimit))
		return
	}
	failures, err := h.failures.ListUnresolved(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if failures == nil {
		failures = []*model.SettlementFailure{}
	}
	writeJSON(w, http.StatusOK, failures)
}

func (h *Handler) ResolveFailure(w http.ResponseWriter, r *http.Request) {
	if h.failures == nil {
		writeError(w, http.StatusNotImplemented, "no_database", "no database attached")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "failureID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "failure id must be an integer")
		return
	}
	switch err := h.failures.Resolve(r.Context(), id); {
	case errors.Is(err, repository.ErrFailureNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) room(w http.ResponseWriter, r *http.Request) (*room.Room, bool) {
	id := chi.URLParam(r, "roomID")
	rm, ok := h.rooms.Get(id)
	if !ok || rm.IsClosed() {
		writeError(w, http.StatusNotFound, "room_not_found", "no room "+id)
		return nil, false
	}
	return rm, true
}

func pathPlayer(w http.ResponseWriter, r *http.Request) (int64, bool) {
	playerID, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
	if err != nil || playerID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_player", "player id must be a positive integer")
		return 0, false
	}
	return playerID, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func writeRoomError(w http.ResponseWriter, err error) {
	code := room.Code(err)
	status := http.StatusConflict
	switch code {
	case "internal":
		status = http.StatusInternalServerError
	case "wrong_mode":
		status = http.StatusBadRequest
	}
	writeError(w, status, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, reason string) {
	writeJSON(w, status, map[string]string{"code": code, "reason": reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
