package model

import "slices"

type Subject string

const (
	SubjectChemistry Subject = "Chemistry"
	SubjectBiology   Subject = "Biology"
	SubjectPhysics   Subject = "Physics"
	SubjectCalculus  Subject = "Calculus"
)

type RequestType string

const (
	TypeStudyGuide RequestType = "STUDY_GUIDE"
	TypeAnswerKey  RequestType = "ANSWER_KEY"
)

// MaterialCategory narrows a STUDY_GUIDE request. It is empty for
// ANSWER_KEY requests.
type MaterialCategory string

const (
	CategoryMockExam   MaterialCategory = "MOCK_EXAM"
	CategoryAssignment MaterialCategory = "ASSIGNMENT"
	CategoryPractice   MaterialCategory = "PRACTICE"
	CategoryAll        MaterialCategory = "ALL"
)

// Label is the human-facing name of the category.
func (c MaterialCategory) Label() string {
	switch c {
	case CategoryMockExam:
		return "Mock Exam"
	case CategoryAssignment:
		return "Assignment / Homework"
	case CategoryPractice:
		return "Practice Problems"
	case CategoryAll:
		return "All (Comprehensive Package)"
	}
	return string(c)
}

func (c MaterialCategory) Valid() bool {
	switch c {
	case CategoryMockExam, CategoryAssignment, CategoryPractice, CategoryAll:
		return true
	}
	return false
}

// Status moves PENDING -> PROCESSING -> COMPLETED under the builder flow.
// Storage does not enforce the order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted:
		return true
	}
	return false
}

// Request is a student's ask for study material or an answer key.
//
// UserName and UserPhone are a snapshot of the owner's fields at the last
// sync and may briefly lag a user edit. Optional fields use the empty
// string as "absent" and are omitted from the stored form.
type Request struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	UserName         string           `json:"userName"`
	UserPhone        string           `json:"userPhone"`
	Subject          Subject          `json:"subject"`
	Unit             string           `json:"unit"`
	Type             RequestType      `json:"type"`
	MaterialCategory MaterialCategory `json:"materialCategory,omitempty"`
	AttachedFileName string           `json:"attachedFileName,omitempty"`
	Description      string           `json:"description,omitempty"`
	Status           Status           `json:"status"`
	Content          string           `json:"content,omitempty"`
	CreatedAt        int64            `json:"createdAt"` // unix milliseconds
}

// WellFormed checks the type-dependent optional fields.
func (r Request) WellFormed() bool {
	switch r.Type {
	case TypeStudyGuide:
		return r.MaterialCategory != ""
	case TypeAnswerKey:
		return r.AttachedFileName != ""
	}
	return false
}

// SortRequests orders requests by CreatedAt, oldest first, or newest first
// when desc is set. Ties keep their relative order.
func SortRequests(reqs []Request, desc bool) {
	slices.SortStableFunc(reqs, func(a, b Request) int {
		if desc {
			a, b = b, a
		}
		switch {
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		}
		return 0
	})
}
