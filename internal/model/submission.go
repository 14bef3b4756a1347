package model

// BodyKind records which wire format a submission arrived in.
type BodyKind int

const (
	BodyJSON BodyKind = iota
	BodyMultipart
)

func (k BodyKind) String() string {
	if k == BodyMultipart {
		return "multipart"
	}
	return "json"
}

// Submission is the request-scoped, normalized form of a widget report.
// It is never persisted directly; see Feedback.
type Submission struct {
	Type          FeedbackType `json:"type" validate:"feedback_type"`
	Title         string       `json:"title" validate:"max=200"`
	Description   string       `json:"description" validate:"required,max=10000"`
	ReporterEmail string       `json:"reporterEmail" validate:"omitempty,max=254,email"`
	ReporterName  string       `json:"reporterName" validate:"max=100"`
	PageURL       string       `json:"pageUrl" validate:"max=2048"`
	UserAgent     string       `json:"userAgent"`
	BrowserInfo   JSON         `json:"browserInfo"`
	DeviceInfo    JSON         `json:"deviceInfo"`
	CustomData    JSON         `json:"customData"`

	Body        BodyKind         `json:"-"`
	Attachments []*RawAttachment `json:"-"`
}

// RawAttachment is an unvalidated file part. Data holds at most the
// configured per-file ceiling plus one byte; Size is the full part length.
type RawAttachment struct {
	Field    string
	Filename string
	Kind     MediaKind
	Data     []byte
	Size     int64
}
