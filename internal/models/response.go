package models

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// InsufficientCreditsResponse is the 402 payload: how much the request
// would have cost against what the account holds.
type InsufficientCreditsResponse struct {
	Error     string `json:"error"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type GenerateResponse struct {
	Success bool          `json:"success"`
	Data    *RenderResult `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type RenderResult struct {
	ID             string `json:"id"`
	OutputURL      string `json:"outputUrl"`
	Status         string `json:"status"`
	ProcessingTime int    `json:"processingTime"`
}

type RenderResponse struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Type           string    `json:"type"`
	Prompt         string    `json:"prompt"`
	Status         string    `json:"status"`
	OutputURL      string    `json:"output_url,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ProcessingTime int       `json:"processing_time,omitempty"`
	CreditsCost    int       `json:"credits_cost"`
	ChainID        string    `json:"chain_id,omitempty"`
	ChainPosition  int       `json:"chain_position,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type RenderListResponse struct {
	Renders []RenderResponse `json:"renders"`
}

type CreditsResponse struct {
	Balance       int `json:"balance"`
	TotalEarned   int `json:"total_earned"`
	TotalSpent    int `json:"total_spent"`
	MonthlyEarned int `json:"monthly_earned"`
	MonthlySpent  int `json:"monthly_spent"`
}

type TransactionResponse struct {
	ID            string    `json:"id"`
	Amount        int       `json:"amount"`
	Type          string    `json:"type"`
	Description   string    `json:"description"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	ReferenceType string    `json:"reference_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

type ProjectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type GalleryItemResponse struct {
	ID        string    `json:"id"`
	RenderID  string    `json:"render_id"`
	Type      string    `json:"type"`
	Prompt    string    `json:"prompt"`
	OutputURL string    `json:"output_url"`
	Likes     int       `json:"likes"`
	Views     int       `json:"views"`
	Featured  bool      `json:"featured"`
	CreatedAt time.Time `json:"created_at"`
}

type GalleryListResponse struct {
	Items []GalleryItemResponse `json:"items"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
