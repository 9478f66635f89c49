package models

type GenerateDraftsRequest struct {
	SourceText string `json:"source_text"`
	Count      int    `json:"count"`
}

type EditDraftRequest struct {
	Draft
}

type SaveDraftsRequest struct {
	Subject string `json:"subject"`
	Chapter string `json:"chapter"`
}

type ExplainRequest struct {
	QuestionID string `json:"question_id"`
}

type ExplainResponse struct {
	QuestionID  string `json:"question_id"`
	Explanation string `json:"explanation"`
}
