package llm

import (
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/gepetto/pkg/jsonutil"
)

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Defaults applied when the corresponding option is nil.
const (
	DefaultChatTemperature         = 1.0
	DefaultChatTopP                = 1.0
	DefaultFunctionCallTemperature = 0.7
)

// Message is one entry of a conversation. Messages are forwarded in order and
// are not validated here.
type Message struct {
	Role       string `json:"role" yaml:"role"`
	Content    string `json:"content" yaml:"content"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ChatOptions controls a single Chat call. Sampling values are forwarded as
// given, 0 included; nil selects the default.
type ChatOptions struct {
	Model       string   // Overrides the client model for this call only
	Temperature *float64 // Default 1.0
	TopP        *float64 // Default 1.0
	JSONMode    bool     // Constrain the reply to a JSON object
}

// FunctionCallOptions controls a single FunctionCall. A nil Temperature selects the default.
type FunctionCallOptions struct {
	Model       string   // Overrides the client model for this call only
	Temperature *float64 // Default 0.7
}

// Float returns a pointer to v for the optional sampling fields.
func Float(v float64) *float64 {
	return &v
}

func (o ChatOptions) temperature() float64 {
	return floatOr(o.Temperature, DefaultChatTemperature)
}

func (o ChatOptions) topP() float64 {
	return floatOr(o.TopP, DefaultChatTopP)
}

func (o FunctionCallOptions) temperature() float64 {
	return floatOr(o.Temperature, DefaultFunctionCallTemperature)
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// wireFloat converts a sampling value for go-openai. Its request fields are
// omitempty, so an explicit 0 is sent as the smallest positive float32.
func wireFloat(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

// ChatResult is the priced outcome of a Chat call.
type ChatResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             decimal.Decimal
	Model            string // Resolved model actually used for the call
}

// FunctionResult is the priced outcome of a FunctionCall.
type FunctionResult struct {
	FunctionName     string
	Parameters       map[string]any
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             decimal.Decimal
	Model            string
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
	}
	return result
}

// Param returns a parameter as a string, tolerating models that send numbers
// or booleans where the schema asked for a string. Missing keys yield "".
func (r *FunctionResult) Param(name string) string {
	return jsonutil.FlexibleString(r.Parameters[name])
}

// Decode converts the decoded parameters into a typed value.
func (r *FunctionResult) Decode(v any) error {
	if err := jsonutil.Remarshal(r.Parameters, v); err != nil {
		return fmt.Errorf("decode function parameters: %w", err)
	}
	return nil
}
