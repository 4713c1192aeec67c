package dto

import "github.com/radieske/challenge-settlement-platform/internal/challenge"

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type EvidenceUploadResponse struct {
	URLs []string `json:"urls"`
}

type ResolveResponse struct {
	Dispute   *challenge.Dispute   `json:"dispute"`
	Challenge *challenge.Challenge `json:"challenge"`
}

type SweepResponse struct {
	Forfeited int `json:"forfeited"`
}
