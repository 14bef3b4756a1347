package model

import (
	"time"
)

type FeedbackType string

const (
	FeedbackTypeBug        FeedbackType = "bug"
	FeedbackTypeSuggestion FeedbackType = "suggestion"
	FeedbackTypePraise     FeedbackType = "praise"
	FeedbackTypeOther      FeedbackType = "other"
)

var feedbackTypes = map[FeedbackType]bool{
	FeedbackTypeBug:        true,
	FeedbackTypeSuggestion: true,
	FeedbackTypePraise:     true,
	FeedbackTypeOther:      true,
}

func (t FeedbackType) Valid() bool {
	return feedbackTypes[t]
}

const (
	FeedbackStatusNew = "new"

	FeedbackPriorityMedium = "medium"
)

type Feedback struct {
	ID            string       `db:"id"`
	ProjectID     string       `db:"project_id"`
	Type          FeedbackType `db:"type"`
	Status        string       `db:"status"`
	Priority      string       `db:"priority"`
	Title         *string      `db:"title"`
	Description   string       `db:"description"`
	ReporterName  *string      `db:"reporter_name"`
	ReporterEmail *string      `db:"reporter_email"`
	PageURL       *string      `db:"page_url"`
	UserAgent     *string      `db:"user_agent"`
	BrowserInfo   JSON         `db:"browser_info"`
	DeviceInfo    JSON         `db:"device_info"`
	CustomData    JSON         `db:"custom_data"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}
