package questionnaire

import "time"

// Status values of a questionnaire's lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusClosed    Status = "CLOSED"
)

// Questionnaire is a votable question with a fixed option list.
type Questionnaire struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Question  string    `json:"question"`
	Options   []Option  `json:"options,omitempty"`
	Status    Status    `json:"status"`
	CreatedBy int64     `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Option is one selectable answer.
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// OptionResult is the vote tally for one option.
type OptionResult struct {
	OptionID int64  `json:"optionId"`
	Label    string `json:"label"`
	Votes    int    `json:"votes"`
}

// Results is the aggregate outcome of a questionnaire.
type Results struct {
	QuestionnaireID int64          `json:"questionnaireId"`
	TotalVotes      int            `json:"totalVotes"`
	Options         []OptionResult `json:"options"`
}
