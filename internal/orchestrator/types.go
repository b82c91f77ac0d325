package orchestrator

// IntakePayload is PROJECT.INITIAL_REQUEST_RECEIVED's payload.
type IntakePayload struct {
	ProjectID   string `json:"project_id"`
	RequestText string `json:"request_text"`
}

// WorkItemDispatchedPayload is WORK.ITEM_DISPATCHED's payload.
type WorkItemDispatchedPayload struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	ItemType      string         `json:"item_type"`
	AgentTarget   string         `json:"agent_target,omitempty"`
	WorkContext   map[string]any `json:"work_context,omitempty"`
}

// WorkItemCompletedPayload is WORK.ITEM_COMPLETED's payload.
type WorkItemCompletedPayload struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	Evidence      map[string]any `json:"evidence"`
}

// WorkItemFailedPayload is WORK.ITEM_FAILED's payload.
type WorkItemFailedPayload struct {
	ProjectID     string `json:"project_id"`
	BacklogItemID string `json:"backlog_item_id"`
	Reason        string `json:"reason"`
	Category      string `json:"category"`
}

// QuestionCreatedPayload is QUESTION.CREATED's payload.
type QuestionCreatedPayload struct {
	ProjectID          string `json:"project_id"`
	QuestionID         string `json:"question_id"`
	BacklogItemID      string `json:"backlog_item_id"`
	QuestionText       string `json:"question_text"`
	ExpectedAnswerType string `json:"expected_answer_type"`
}

// ClarificationNeededPayload is CLARIFICATION.NEEDED's payload.
type ClarificationNeededPayload struct {
	ProjectID     string   `json:"project_id"`
	BacklogItemID string   `json:"backlog_item_id"`
	MissingFields []string `json:"missing_fields"`
}

// UserAnswerSubmittedPayload is USER.ANSWER_SUBMITTED's payload.
type UserAnswerSubmittedPayload struct {
	ProjectID  string `json:"project_id"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// BacklogItemUnblockedPayload is BACKLOG.ITEM_UNBLOCKED's payload.
type BacklogItemUnblockedPayload struct {
	ProjectID     string `json:"project_id"`
	BacklogItemID string `json:"backlog_item_id"`
}
