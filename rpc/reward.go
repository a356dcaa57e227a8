package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"deedchain/observability"
)

type rewardMintRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type rewardBurnRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type rewardTransferRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type supplyResponse struct {
	Total       string `json:"total"`
	OwnerMinted string `json:"ownerMinted"`
	PoolMinted  string `json:"poolMinted"`
	OwnerCap    string `json:"ownerCap"`
	PoolCap     string `json:"poolCap"`
}

func (s *Server) handleRewardMint(w http.ResponseWriter, r *http.Request) {
	var req rewardMintRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.reward.MintOwner(caller, to, amount); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.recordSupply()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "minted"})
}

func (s *Server) handleRewardBurn(w http.ResponseWriter, r *http.Request) {
	var req rewardBurnRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.reward.Burn(caller, amount); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.recordSupply()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "burned"})
}

func (s *Server) handleRewardTransfer(w http.ResponseWriter, r *http.Request) {
	var req rewardTransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.reward.Transfer(caller, to, amount); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (s *Server) handleRewardBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	balance, err := s.reward.BalanceOf(addr)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{Address: formatAddress(addr), Balance: balance.String()})
}

func (s *Server) handleRewardSupply(w http.ResponseWriter, r *http.Request) {
	total, err := s.reward.TotalSupply()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	ownerMinted, err := s.reward.OwnerMintedSupply()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	poolMinted, err := s.reward.PoolMintedSupply()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, supplyResponse{
		Total:       total.String(),
		OwnerMinted: ownerMinted.String(),
		PoolMinted:  poolMinted.String(),
		OwnerCap:    s.reward.OwnerMintCap().String(),
		PoolCap:     s.reward.PoolMintCap().String(),
	})
}

func (s *Server) handlePoolAvailable(w http.ResponseWriter, r *http.Request) {
	available, err := s.pool.Available()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"available": available.String()})
}

func (s *Server) handlePoolReserved(w http.ResponseWriter, r *http.Request) {
	reserved, err := s.pool.Reserved()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"reserved": reserved.String()})
}

// recordSupply refreshes the supply gauges after a mutation; failures are
// ignored because metrics lag is preferable to failing the request.
func (s *Server) recordSupply() {
	ownerMinted, err := s.reward.OwnerMintedSupply()
	if err != nil {
		return
	}
	poolMinted, err := s.reward.PoolMintedSupply()
	if err != nil {
		return
	}
	reserved, err := s.pool.Reserved()
	if err != nil {
		return
	}
	observability.Supply().Record(ownerMinted, poolMinted, reserved)
}
