package rpc

import (
	"net/http"

	"deedchain/observability"
)

type buyRequest struct {
	Caller     string `json:"caller"`
	ContractID uint64 `json:"contractId"`
}

type buyResponse struct {
	ContractID uint64 `json:"contractId"`
	Unit       uint64 `json:"unit"`
}

func (s *Server) handleMarketplaceBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	contract, err := s.registry.Contract(req.ContractID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	price, err := s.market.PriceForCaller(caller, req.ContractID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	unit, err := s.market.BuyNextUnit(caller, req.ContractID)
	if err != nil {
		observability.Marketplace().RecordFailure(failureReason(err))
		s.writeEngineError(w, err)
		return
	}
	observability.Marketplace().RecordPurchase(contract.IsBuyer(caller), price)
	s.recordSupply()
	s.writeJSON(w, http.StatusOK, buyResponse{ContractID: req.ContractID, Unit: unit})
}

func failureReason(err error) string {
	switch {
	case isUnauthorized(err):
		return "unauthorized"
	case isNotFound(err):
		return "not_found"
	case isBadRequest(err):
		return "rejected"
	}
	return "internal"
}

type interestUpdateRequest struct {
	Caller string `json:"caller"`
	Rate   uint64 `json:"rate"`
}

func (s *Server) handleInterestUpdate(w http.ResponseWriter, r *http.Request) {
	var req interestUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.market.SetInterestRate(caller, req.Rate); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"rate": req.Rate})
}

func (s *Server) handleInterestGet(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]uint64{"rate": s.market.InterestRate()})
}

type withdrawRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
}

func (s *Server) handleLiquidityWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
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
	amount, err := s.market.WithdrawLiquidity(caller, to)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"amount": amount.String()})
}
