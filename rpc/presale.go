package rpc

import (
	"net/http"

	"deedchain/native/presale"
	"deedchain/observability"
)

type presaleOpenRequest struct {
	Caller    string `json:"caller"`
	SoftCap   string `json:"softCap"`
	StepSize  string `json:"stepSize"`
	BasePrice string `json:"basePrice"`
}

func (s *Server) handlePresaleOpen(w http.ResponseWriter, r *http.Request) {
	var req presaleOpenRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	softCap, err := parseAmount(req.SoftCap)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	stepSize, err := parseAmount(req.StepSize)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	basePrice, err := parseAmount(req.BasePrice)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.presale.Open(caller, softCap, stepSize, basePrice); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "open"})
}

type presaleBuyRequest struct {
	Caller string `json:"caller"`
	Units  string `json:"units"`
}

func (s *Server) handlePresaleBuy(w http.ResponseWriter, r *http.Request) {
	var req presaleBuyRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	units, err := parseAmount(req.Units)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.presale.Buy(caller, units); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.recordPresale()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "bought"})
}

type presaleCloseRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handlePresaleClose(w http.ResponseWriter, r *http.Request) {
	var req presaleCloseRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.presale.Close(caller)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": statusString(result)})
}

type presaleAccountRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handlePresaleClaim(w http.ResponseWriter, r *http.Request) {
	var req presaleAccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.presale.Claim(caller)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"claimed": amount.String()})
}

func (s *Server) handlePresaleRefund(w http.ResponseWriter, r *http.Request) {
	var req presaleAccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.presale.Refund(caller)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"refunded": amount.String()})
}

func (s *Server) handlePresalePrice(w http.ResponseWriter, r *http.Request) {
	price, err := s.presale.TokenPrice()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"price": price.String()})
}

func (s *Server) handlePresaleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.presale.Status()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": statusString(result)})
}

func statusString(status presale.Status) string {
	switch status {
	case presale.StatusOpen:
		return "open"
	case presale.StatusSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

func (s *Server) recordPresale() {
	sale, ok, err := s.state.PresaleGet()
	if err != nil || !ok {
		return
	}
	observability.Presale().Record(sale.Sold, sale.Raised)
}
