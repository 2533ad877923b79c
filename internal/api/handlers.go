package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// Amounts serialize as decimal strings. Raw reserve integers overflow
// float64 well within normal token supplies, so no numeric JSON.

type tokenView struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Decimals  int       `json:"decimals"`
	CreatedAt time.Time `json:"createdAt"`

	Price *decimal.Decimal `json:"price,omitempty"`
}

type pairView struct {
	Address          string          `json:"address"`
	AssetA           string          `json:"assetA"`
	AssetAAmount     decimal.Decimal `json:"assetAAmount"`
	AssetB           string          `json:"assetB"`
	AssetBAmount     decimal.Decimal `json:"assetBAmount"`
	AssetShare       string          `json:"assetShare"`
	AssetShareAmount decimal.Decimal `json:"assetShareAmount"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type pairSnapshotView struct {
	AssetAAmount     decimal.Decimal `json:"assetAAmount"`
	AssetBAmount     decimal.Decimal `json:"assetBAmount"`
	AssetShareAmount decimal.Decimal `json:"assetShareAmount"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type pricePointView struct {
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"createdAt"`
}

func newTokenView(t *domain.Token) tokenView {
	return tokenView{
		Address:   t.Address,
		Name:      t.Name,
		Symbol:    t.Symbol,
		Decimals:  t.Decimals,
		CreatedAt: t.CreatedAt,
	}
}

// tokenAddresses maps token ids to addresses for pair rendering.
func (s *Server) tokenAddresses(ctx context.Context) (map[int64]string, error) {
	tokens, err := s.tokens.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]string, len(tokens))
	for _, t := range tokens {
		byID[t.ID] = t.Address
	}
	return byID, nil
}

func newPairView(p *domain.Pair, addrByID map[int64]string) pairView {
	return pairView{
		Address:          p.Address,
		AssetA:           addrByID[p.AssetAID],
		AssetAAmount:     p.AssetAAmount,
		AssetB:           addrByID[p.AssetBID],
		AssetBAmount:     p.AssetBAmount,
		AssetShare:       addrByID[p.AssetShareID],
		AssetShareAmount: p.AssetShareAmount,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.pairs.List(r.Context())
	if err != nil {
		s.serverError(w, "list pairs", err)
		return
	}
	addrByID, err := s.tokenAddresses(r.Context())
	if err != nil {
		s.serverError(w, "list tokens", err)
		return
	}

	views := make([]pairView, 0, len(pairs))
	for _, p := range pairs {
		views = append(views, newPairView(p, addrByID))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetPair(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	pair, err := s.pairs.GetByAddress(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("pair not found: %s", address))
		return
	}
	if err != nil {
		s.serverError(w, "get pair", err)
		return
	}
	addrByID, err := s.tokenAddresses(r.Context())
	if err != nil {
		s.serverError(w, "list tokens", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPairView(pair, addrByID))
}

func (s *Server) handlePairHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address := vars["address"]

	days, ok := s.parseDays(w, vars["days"])
	if !ok {
		return
	}

	pair, err := s.pairs.GetByAddress(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("pair not found: %s", address))
		return
	}
	if err != nil {
		s.serverError(w, "get pair", err)
		return
	}

	to := s.now().UTC()
	from := to.AddDate(0, 0, -days)
	snaps, err := s.pairHistory.GetByPair(r.Context(), pair.ID, from, to)
	if err != nil {
		s.serverError(w, "get pair history", err)
		return
	}

	views := make([]pairSnapshotView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, pairSnapshotView{
			AssetAAmount:     snap.AssetAAmount,
			AssetBAmount:     snap.AssetBAmount,
			AssetShareAmount: snap.AssetShareAmount,
			CreatedAt:        snap.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.tokens.List(r.Context())
	if err != nil {
		s.serverError(w, "list tokens", err)
		return
	}

	views := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, newTokenView(t))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	token, err := s.tokens.GetByAddress(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("token not found: %s", address))
		return
	}
	if err != nil {
		s.serverError(w, "get token", err)
		return
	}

	view := newTokenView(token)

	// Attach the latest known price when one exists. Tokens without a
	// route into the quote assets simply have no price field.
	to := s.now().UTC()
	points, err := s.tokenHistory.GetByToken(r.Context(), token.ID, to.AddDate(0, 0, -7), to)
	if err != nil {
		s.serverError(w, "get token history", err)
		return
	}
	if len(points) > 0 {
		latest := points[len(points)-1].Price
		view.Price = &latest
	}

	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTokenHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address := vars["address"]

	days, ok := s.parseDays(w, vars["days"])
	if !ok {
		return
	}

	token, err := s.tokens.GetByAddress(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("token not found: %s", address))
		return
	}
	if err != nil {
		s.serverError(w, "get token", err)
		return
	}

	to := s.now().UTC()
	from := to.AddDate(0, 0, -days)
	points, err := s.tokenHistory.GetByToken(r.Context(), token.ID, from, to)
	if err != nil {
		s.serverError(w, "get token history", err)
		return
	}

	views := make([]pricePointView, 0, len(points))
	for _, p := range points {
		views = append(views, pricePointView{Price: p.Price, CreatedAt: p.CreatedAt})
	}
	s.writeJSON(w, http.StatusOK, views)
}

// parseDays validates the {days} path segment. On failure it writes a
// 400 response and returns false.
func (s *Server) parseDays(w http.ResponseWriter, raw string) (int, bool) {
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid days value: %s", raw))
		return 0, false
	}
	return days, true
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("Error handling %s: %v", op, err)
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}
