package models

import "time"

// Digest summarises one scheduled run over the watched communities
type Digest struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Period      string            `json:"period"`
	Reports     []*AnalysisReport `json:"reports"`
	Failures    []DigestFailure   `json:"failures,omitempty"`
}

// DigestFailure records a community that could not be analysed
type DigestFailure struct {
	Community string `json:"community"`
	Error     string `json:"error"`
}

// Alert is an operational notice sent outside the regular digest
type Alert struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Community string    `json:"community,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
