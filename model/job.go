package model

import (
	"time"
)

// Job represents one uploaded batch and the artifacts it produced
type Job struct {
	ID          string         `json:"id"`
	Owner       string         `json:"owner"`
	Filename    string         `json:"filename"`
	InputPath   string         `json:"-"`
	Destination string         `json:"destination"`
	Status      string         `json:"status"` // pending, running, completed, failed
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Summary     map[Status]int `json:"summary,omitempty"`
	ResultsPath string         `json:"results_path,omitempty"`
	MergedPath  string         `json:"merged_path,omitempty"`
	ResultsURL  string         `json:"results_url,omitempty"`
	MergedURL   string         `json:"merged_url,omitempty"`
	ErrorMsg    string         `json:"error_msg,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Job status constants
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)
