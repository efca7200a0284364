package listings

// SubRegion is one entry returned by list_sub_regions.
type SubRegion struct {
	Code string
	Name string
	Lat  float64
	Lon  float64
}

// ComplexSummary is one paged row returned by list_complexes.
type ComplexSummary struct {
	ExternalID    string
	Name          string
	DealCount     int
	TotalUnits    *int
	UseApproveYMD string
	Lat           float64
	Lon           float64
	Address       string
}

// ComplexPage is one page of list_complexes, with the source-reported total
// so callers can page until accumulated >= Total.
type ComplexPage struct {
	Complexes []ComplexSummary
	Total     int
}

// Article is one listing row returned by list_articles.
type Article struct {
	ExternalArticleID string
	Name              string
	PriceText         string
	AreaSupply        float64
	AreaExclusive     float64
	FloorInfo         string
	BuildingName      string
	ConfirmDate       string
	Direction         string
}

// ArticlePage is one page of list_articles.
type ArticlePage struct {
	Articles []Article
	Total    int
}
