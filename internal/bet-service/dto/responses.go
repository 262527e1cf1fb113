package dto

import (
	"github.com/radieske/match-bet-platform/internal/parlay"
	"github.com/radieske/match-bet-platform/pkg/models"
)

type ParlayResponse struct {
	Parlay models.Parlay `json:"parlay"`
	Quote  parlay.Result `json:"quote"`
}

type PlacementsResponse struct {
	Placements []models.BetPlacement `json:"placements"`
	Count      int                   `json:"count"`
}

type HistoryResponse struct {
	Placements []models.PlacementRecord `json:"placements"`
	Count      int                      `json:"count"`
}

type ParlaysResponse struct {
	Parlays []models.Parlay `json:"parlays"`
	Count   int             `json:"count"`
}

type SettleMarketResponse struct {
	MarketID string `json:"marketId"`
	Status   string `json:"status"`
}
