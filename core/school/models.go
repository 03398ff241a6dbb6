package school

import "time"

// School is a tenant. All import jobs, students and parent relationships
// are scoped to one school.
type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Level is an academic level (grade). Position orders levels within a school.
type Level struct {
	ID       string `json:"id"`
	SchoolID string `json:"school_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	IsActive bool   `json:"is_active"`
}

// Class is a stream/section within a Level.
type Class struct {
	ID       string `json:"id"`
	LevelID  string `json:"level_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}
