package contestation

import "time"

type OpenRequest struct {
	RecordULID string   `json:"record_ulid" binding:"required"`
	Reason     string   `json:"reason" binding:"required"`
	Severity   Severity `json:"severity" binding:"required"`
}

type ResolveRequest struct {
	Outcome        Outcome   `json:"outcome" binding:"required"`
	ResolutionText string    `json:"resolution_text" binding:"required"`
	Time           time.Time `json:"time,omitempty"`
}

type ContestationResponse struct {
	ContestationULID string     `json:"contestation_ulid"`
	RecordULID       string     `json:"record_ulid"`
	ClientID         string     `json:"client_id"`
	Reason           string     `json:"reason"`
	Severity         Severity   `json:"severity"`
	Status           Status     `json:"status"`
	ResolutionText   *string    `json:"resolution_text,omitempty"`
	ResolverID       *string    `json:"resolver_id,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (c *Contestation) toDTO() ContestationResponse {
	out := ContestationResponse{
		ContestationULID: c.ContestationULID,
		RecordULID:       c.RecordULID,
		ClientID:         c.ClientID,
		Reason:           c.Reason,
		Severity:         c.Severity,
		Status:           c.Status,
		CreatedAt:        c.CreatedAt,
	}
	if c.ResolutionText.Valid {
		v := c.ResolutionText.String
		out.ResolutionText = &v
	}
	if c.ResolverID.Valid {
		v := c.ResolverID.String
		out.ResolverID = &v
	}
	if c.ResolvedAt.Valid {
		v := c.ResolvedAt.Time
		out.ResolvedAt = &v
	}
	return out
}
