package models

import "time"

// BoundingBox é o filtro geográfico grosseiro usado pela descoberta
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains indica se a localização cai dentro da caixa
func (b BoundingBox) Contains(l Location) bool {
	return l.Lat >= b.MinLat && l.Lat <= b.MaxLat && l.Lng >= b.MinLng && l.Lng <= b.MaxLng
}

// CandidateQuery descreve o conjunto de candidatos da descoberta.
// O repositório sempre exclui perfis com HideFromBetting, sem idade, sem fotos ou sem bio.
type CandidateQuery struct {
	ExcludeIDs []string
	AgeRange   *AgeRange
	Box        *BoundingBox
	Limit      int
}

// SimilarMatchQuery busca matches recentes com idades parecidas às do par avaliado
type SimilarMatchQuery struct {
	AgeA, AgeB int
	Tolerance  int
	Since      time.Time
	Limit      int
}
