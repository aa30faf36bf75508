package model

const (
	ChatbotStatusActive   = "active"
	ChatbotStatusInactive = "inactive"
)

type Chatbot struct {
	ID           string  `json:"id"`
	OrgID        string  `json:"org_id"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	SystemPrompt string  `json:"system_prompt"`
	ModelFamily  string  `json:"model_family"`
	Model        string  `json:"model"`
	Temperature  float32 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	Ctime        int64   `json:"ctime"`
	Mtime        int64   `json:"mtime"`
}
