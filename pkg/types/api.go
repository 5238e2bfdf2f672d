package types

// ChatCompletionRequest is the OpenAI-compatible payload accepted by POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Model identifier. The server serves a single model and accepts any value here.
	// example: google/gemma-3-4b-it
	Model string `json:"model,omitempty" example:"google/gemma-3-4b-it"`
	// Conversation so far, oldest first.
	Messages []ChatMessage `json:"messages"`
	// Maximum number of new tokens to generate. Zero or omitted uses the server default.
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
	// Newer spelling of max_tokens. Used when max_tokens is not set.
	// example: 256
	MaxCompletionTokens int `json:"max_completion_tokens,omitempty" example:"256"`
	// If true, stream chat.completion.chunk objects as server-sent events.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Accepted for compatibility. Decoding is always greedy.
	// example: 0
	Temperature *float64 `json:"temperature,omitempty" example:"0"`
	// Accepted for compatibility. Decoding is always greedy.
	TopP *float64 `json:"top_p,omitempty"`
	// Opaque end-user identifier, logged only.
	User string `json:"user,omitempty"`
}

// ChatMessage is one wire message. Content is either a string or a list of parts.
type ChatMessage struct {
	// example: user
	Role    string         `json:"role" example:"user"`
	Content MessageContent `json:"content" swaggertype:"object"`
}

// Content part types understood by the decoder.
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ContentPart is one element of an array-valued message content.
type ContentPart struct {
	// example: text
	Type string `json:"type" example:"text"`
	// Set when type is "text".
	// example: Describe this image in detail.
	Text string `json:"text,omitempty" example:"Describe this image in detail."`
	// Set when type is "image_url".
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL, local path, or data: URI.
type ImageURL struct {
	// example: https://example.com/cat.png
	URL string `json:"url" example:"https://example.com/cat.png"`
	// Accepted for compatibility, ignored.
	// example: auto
	Detail string `json:"detail,omitempty" example:"auto"`
}

// ChatCompletionResponse is returned for non-streaming requests.
type ChatCompletionResponse struct {
	// example: chatcmpl-6f1c2a
	ID string `json:"id" example:"chatcmpl-6f1c2a"`
	// example: chat.completion
	Object string `json:"object" example:"chat.completion"`
	// example: 1700000000
	Created int64 `json:"created" example:"1700000000"`
	// example: google/gemma-3-4b-it
	Model   string       `json:"model" example:"google/gemma-3-4b-it"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// ChatCompletionChunk is one server-sent event of a streaming response.
type ChatCompletionChunk struct {
	ID string `json:"id"`
	// example: chat.completion.chunk
	Object  string       `json:"object" example:"chat.completion.chunk"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// ChatChoice carries Message in full responses and Delta in chunks.
type ChatChoice struct {
	Index   int                  `json:"index"`
	Message *ChatResponseMessage `json:"message,omitempty"`
	Delta   *ChatDelta           `json:"delta,omitempty"`
	// null until the final chunk; "stop" or "length".
	// example: stop
	FinishReason *string `json:"finish_reason" example:"stop"`
}

// ChatResponseMessage is the assistant message of a full response.
type ChatResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatDelta is the incremental message of a chunk.
type ChatDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Usage reports token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelList is returned by GET /v1/models.
type ModelList struct {
	// example: list
	Object string      `json:"object" example:"list"`
	Data   []ModelCard `json:"data"`
}

// ModelCard describes a served model in OpenAI list format.
type ModelCard struct {
	// example: google/gemma-3-4b-it
	ID string `json:"id" example:"google/gemma-3-4b-it"`
	// example: model
	Object string `json:"object" example:"model"`
	// example: 1700000000
	Created int64 `json:"created" example:"1700000000"`
	// example: vlmd
	OwnedBy string `json:"owned_by" example:"vlmd"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody follows the OpenAI error object.
type ErrorBody struct {
	// Error message.
	// example: messages must not be empty
	Message string `json:"message" example:"messages must not be empty"`
	// Error class.
	// example: invalid_request_error
	Type string `json:"type" example:"invalid_request_error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
