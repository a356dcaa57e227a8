package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type stableMintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type stableApproveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type stableTransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleStableMint(w http.ResponseWriter, r *http.Request) {
	var req stableMintRequest
	if !s.decode(w, r, &req) {
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
	if err := s.state.MintStable(to, amount); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "minted"})
}

func (s *Server) handleStableApprove(w http.ResponseWriter, r *http.Request) {
	var req stableApproveRequest
	if !s.decode(w, r, &req) {
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	spender, err := parseAddress(req.Spender)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.state.Approve(owner, spender, amount); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (s *Server) handleStableTransfer(w http.ResponseWriter, r *http.Request) {
	var req stableTransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	from, err := parseAddress(req.From)
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
	if err := s.state.Transfer(from, to, amount); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (s *Server) handleStableBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	balance, err := s.state.BalanceOf(addr)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{Address: formatAddress(addr), Balance: balance.String()})
}

func (s *Server) handleStableAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	spender, err := parseAddress(chi.URLParam(r, "spender"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	allowance, err := s.state.Allowance(owner, spender)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"allowance": allowance.String()})
}
