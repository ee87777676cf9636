package domain

// DefaultSoftCap is the per-rater assignment limit applied when a rater row
// carries no explicit cap.
const DefaultSoftCap = 1000

// Rater identifies one human judge. Caps bound how many tasks a rater may be
// offered; a zero TotalCap means "all tasks".
type Rater struct {
	ID          string `json:"rater_id"`
	DisplayName string `json:"display_name,omitempty"`
	SoftCap     int    `json:"soft_cap,omitempty"`
	TotalCap    int    `json:"total_cap,omitempty"`
}
