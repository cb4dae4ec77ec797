package dto

type CoordinatesResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type DestinationResponse struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Weight       float64              `json:"weight"`
	Volume       float64              `json:"volume"`
	LocationCode string               `json:"location_code"`
	Province     string               `json:"province"`
	District     string               `json:"district"`
	Subdistrict  string               `json:"subdistrict"`
	Coordinates  *CoordinatesResponse `json:"coordinates"`
	BusinessType string               `json:"business_type"`
	Ceiling      string               `json:"ceiling,omitempty"`
}

type ListDestinationsResponse struct {
	Destinations []DestinationResponse `json:"destinations"`
}
