package worker

// DispatchedPayload is WORK.ITEM_DISPATCHED's payload, as seen by a worker.
type DispatchedPayload struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	ItemType      string         `json:"item_type"`
	AgentTarget   string         `json:"agent_target,omitempty"`
	WorkContext   map[string]any `json:"work_context,omitempty"`
}

// StartedPayload is WORK.ITEM_STARTED's payload.
type StartedPayload struct {
	ProjectID     string `json:"project_id"`
	BacklogItemID string `json:"backlog_item_id"`
}

// CompletedPayload is WORK.ITEM_COMPLETED's payload.
type CompletedPayload struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	Evidence      map[string]any `json:"evidence"`
}

// FailedPayload is WORK.ITEM_FAILED's payload.
type FailedPayload struct {
	ProjectID     string `json:"project_id"`
	BacklogItemID string `json:"backlog_item_id"`
	Reason        string `json:"reason"`
	Category      string `json:"category"`
}

// DeliverablePublishedPayload is DELIVERABLE.PUBLISHED's payload.
type DeliverablePublishedPayload struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	Deliverable   map[string]any `json:"deliverable"`
}

// ClarificationNeededPayload is CLARIFICATION.NEEDED's payload.
type ClarificationNeededPayload struct {
	ProjectID     string   `json:"project_id"`
	BacklogItemID string   `json:"backlog_item_id"`
	MissingFields []string `json:"missing_fields"`
}
