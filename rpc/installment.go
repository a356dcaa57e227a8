package rpc

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"deedchain/native/installment"
)

type sellerPayload struct {
	Address string `json:"address"`
	Quota   uint8  `json:"quota"`
}

type contractCreateRequest struct {
	Caller        string          `json:"caller"`
	ID            uint64          `json:"id"`
	Sellers       []sellerPayload `json:"sellers"`
	Buyers        []string        `json:"buyers"`
	UnitsTotal    uint64          `json:"unitsTotal"`
	UnitPriceUSD  string          `json:"unitPriceUsd"`
	RewardPerUnit string          `json:"rewardPerUnit"`
	MetadataURI   string          `json:"metadataUri"`
}

type contractResponse struct {
	ID            uint64   `json:"id"`
	Sellers       []string `json:"sellers"`
	Buyers        []string `json:"buyers"`
	UnitsTotal    uint64   `json:"unitsTotal"`
	UnitPriceUSD  string   `json:"unitPriceUsd"`
	RewardPerUnit string   `json:"rewardPerUnit"`
	MetadataURI   string   `json:"metadataUri"`
	NextSaleUnit  uint64   `json:"nextSaleUnit"`
	NextBuyerUnit uint64   `json:"nextBuyerUnit"`
	CreatedAt     int64    `json:"createdAt"`
}

func contractPayload(c *installment.SaleContract) contractResponse {
	resp := contractResponse{
		ID:            c.ID,
		UnitsTotal:    c.UnitsTotal,
		MetadataURI:   c.MetadataURI,
		NextSaleUnit:  c.NextSaleUnit,
		NextBuyerUnit: c.NextBuyerUnit,
		CreatedAt:     c.CreatedAt,
	}
	if c.UnitPriceUSD != nil {
		resp.UnitPriceUSD = c.UnitPriceUSD.String()
	}
	if c.RewardPerUnit != nil {
		resp.RewardPerUnit = c.RewardPerUnit.String()
	}
	for _, seller := range c.Sellers {
		resp.Sellers = append(resp.Sellers, formatAddress(seller.Address))
	}
	for _, buyer := range c.Buyers {
		resp.Buyers = append(resp.Buyers, formatAddress(buyer))
	}
	return resp
}

func (s *Server) handleContractCreate(w http.ResponseWriter, r *http.Request) {
	var req contractCreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params := installment.CreateContractParams{
		ID:          req.ID,
		UnitsTotal:  req.UnitsTotal,
		MetadataURI: req.MetadataURI,
	}
	for _, seller := range req.Sellers {
		addr, err := parseAddress(seller.Address)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		params.Sellers = append(params.Sellers, installment.Seller{Address: addr, Quota: seller.Quota})
	}
	for _, buyer := range req.Buyers {
		addr, err := parseAddress(buyer)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		params.Buyers = append(params.Buyers, addr)
	}
	if req.UnitPriceUSD != "" {
		if params.UnitPriceUSD, err = parseAmount(req.UnitPriceUSD); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.RewardPerUnit != "" {
		if params.RewardPerUnit, err = parseAmount(req.RewardPerUnit); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	contract, err := s.registry.CreateContract(caller, params)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.recordSupply()
	s.writeJSON(w, http.StatusCreated, contractPayload(contract))
}

func (s *Server) contractID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return 0, false
	}
	return id, true
}

func (s *Server) handleContractGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contractID(w, r)
	if !ok {
		return
	}
	contract, err := s.registry.Contract(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contractPayload(contract))
}

type contractCloseRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleContractClose(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contractID(w, r)
	if !ok {
		return
	}
	var req contractCloseRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.CloseContract(caller, id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleContractProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contractID(w, r)
	if !ok {
		return
	}
	progress, err := s.registry.Progress(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	completed, err := s.registry.Completed(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"delivered": progress,
		"completed": completed,
	})
}

func (s *Server) handleContractPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contractID(w, r)
	if !ok {
		return
	}
	buyer, err := parseAddress(r.URL.Query().Get("buyer"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := s.market.PriceForCaller(buyer, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"price": price.String()})
}

func (s *Server) handleUnitOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contractID(w, r)
	if !ok {
		return
	}
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := s.registry.OwnerOf(id, index)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"owner": formatAddress(owner)})
}

func (s *Server) handleUnitBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	balance, err := s.registry.BalanceOf(addr)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": formatAddress(addr),
		"units":   balance,
	})
}

func (s *Server) handleContractMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contractID(w, r)
	if !ok {
		return
	}
	uri, err := s.registry.UnitMetadataURI(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"metadataUri": uri})
}
