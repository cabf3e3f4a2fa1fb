package modeladapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/agentcore/runtime/internal/logging"

	"github.com/agentcore/runtime/internal/core"
)

// EinoConfig configures the eino-backed provider, grounded on the
// teacher's AnthropicConfig (internal/provider/anthropic.go).
type EinoConfig struct {
	ProviderID string
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
}

// EinoProvider wraps an eino ToolCallingChatModel and translates its
// streaming output into this package's typed Event sequence, replacing
// the dead StreamEvent hierarchy the teacher defined but never produced.
type EinoProvider struct {
	id        string
	chatModel model.ToolCallingChatModel
}

// NewEinoProvider constructs an EinoProvider backed by eino-ext's Claude
// chat model.
func NewEinoProvider(ctx context.Context, cfg EinoConfig) (*EinoProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("modeladapter: ANTHROPIC_API_KEY not set")
	}

	claudeCfg := &claude.Config{APIKey: apiKey, Model: cfg.Model, MaxTokens: cfg.MaxTokens}
	if cfg.BaseURL != "" {
		claudeCfg.BaseURL = &cfg.BaseURL
	}

	chatModel, err := claude.NewChatModel(ctx, claudeCfg)
	if err != nil {
		return nil, fmt.Errorf("modeladapter: creating claude chat model: %w", err)
	}

	id := cfg.ProviderID
	if id == "" {
		id = "anthropic"
	}
	return &EinoProvider{id: id, chatModel: chatModel}, nil
}

func (p *EinoProvider) ID() string { return p.id }

// Stream invokes the underlying chat model and relays each chunk as one
// or more typed events, accumulating text/reasoning/tool-call state the
// way the teacher's processMessageChunk did (internal/session/stream.go).
func (p *EinoProvider) Stream(ctx context.Context, req Request, abort <-chan struct{}) (<-chan Event, error) {
	messages := toEinoMessages(req)
	tools := toEinoToolInfos(req.Tools)

	bound := p.chatModel
	if len(tools) > 0 {
		var err error
		bound, err = p.chatModel.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("modeladapter: binding tools: %w", err)
		}
	}

	reader, err := bound.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("modeladapter: starting stream: %w", err)
	}

	out := make(chan Event, 8)
	go p.relay(ctx, reader, abort, out)
	return out, nil
}

func (p *EinoProvider) relay(ctx context.Context, reader *schema.StreamReader[*schema.Message], abort <-chan struct{}, out chan<- Event) {
	defer close(out)
	defer reader.Close()

	textOpen := false
	reasoningOpen := false
	toolOpen := make(map[string]bool)
	toolNames := make(map[string]string)
	accumulatedText := ""
	accumulatedReasoning := ""
	accumulatedArgs := make(map[string]string)
	usage := core.TokenUsage{}
	finish := core.FinishReason("")

	emit := func(ev Event) bool {
		select {
		case <-ctx.Done():
			return false
		case <-abort:
			return false
		case out <- ev:
			return true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-abort:
			return
		default:
		}

		msg, err := reader.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			logging.Error().Err(err).Msg("modeladapter: stream receive error")
			emit(Error{Cause: err})
			return
		}

		if msg.Content != "" {
			if !textOpen {
				textOpen = true
				if !emit(TextStart{}) {
					return
				}
			}
			accumulatedText += msg.Content
			if !emit(TextDelta{Delta: msg.Content}) {
				return
			}
		}

		if msg.ReasoningContent != "" {
			if !reasoningOpen {
				reasoningOpen = true
				if !emit(ReasoningStart{}) {
					return
				}
			}
			accumulatedReasoning += msg.ReasoningContent
			if !emit(ReasoningDelta{Delta: msg.ReasoningContent}) {
				return
			}
		}

		for _, tc := range msg.ToolCalls {
			key := tc.ID
			if key == "" && tc.Index != nil {
				key = fmt.Sprintf("idx:%d", *tc.Index)
			}
			if key == "" {
				continue
			}

			if !toolOpen[key] && tc.ID != "" && tc.Function.Name != "" {
				toolOpen[key] = true
				toolNames[key] = tc.Function.Name
				if !emit(ToolCallStart{ToolCallID: tc.ID, ToolName: tc.Function.Name}) {
					return
				}
			}

			if tc.Function.Arguments != "" {
				accumulatedArgs[key] += tc.Function.Arguments
				if !emit(ToolCallDelta{ToolCallID: tc.ID, ArgsDelta: tc.Function.Arguments}) {
					return
				}
			}
		}

		if msg.ResponseMeta != nil {
			if msg.ResponseMeta.Usage != nil {
				usage.Input = msg.ResponseMeta.Usage.PromptTokens
				usage.Output = msg.ResponseMeta.Usage.CompletionTokens
			}
			if msg.ResponseMeta.FinishReason != "" {
				finish = normalizeFinishReason(msg.ResponseMeta.FinishReason)
			}
		}
	}

	if textOpen {
		if !emit(TextEnd{Text: accumulatedText}) {
			return
		}
	}
	if reasoningOpen {
		if !emit(ReasoningEnd{Text: accumulatedReasoning}) {
			return
		}
	}
	for key, open := range toolOpen {
		if !open {
			continue
		}
		if !emit(ToolCall{ToolCallID: key, ToolName: toolNames[key], Args: accumulatedArgs[key]}) {
			return
		}
	}

	if finish == "" {
		if len(toolOpen) > 0 {
			finish = "tool-calls"
		} else {
			finish = "stop"
		}
	}
	emit(StepFinish{FinishReason: finish, Usage: usage})
}

// normalizeFinishReason maps provider-specific spellings onto the closed
// set of finish reasons (spec §4.5); anything unrecognized is "unknown",
// deliberately treated the same as "tool-calls" by the turn engine and
// surfaced as telemetry (spec §9 open question).
func normalizeFinishReason(reason string) core.FinishReason {
	switch reason {
	case "stop", "end_turn":
		return "stop"
	case "length", "max_tokens":
		return "length"
	case "tool-calls", "tool_use", "tool_calls":
		return "tool-calls"
	case "content-filter", "content_filter":
		return "content-filter"
	case "error":
		return "error"
	default:
		return "unknown"
	}
}

// interruptedToolMessage is the tool-result content substituted for a tool
// call still pending/running when history is replayed (spec §4.8), so the
// model always sees a well-formed trajectory.
const interruptedToolMessage = "[Tool execution was interrupted]"

// toEinoMessages implements the model-message materialization rules of
// spec §4.8: each ConversationItem becomes zero or more schema.Message
// (a user/assistant message, plus one trailing tool-result message per
// tool part on an assistant turn).
func toEinoMessages(req Request) []*schema.Message {
	out := make([]*schema.Message, 0, len(req.System)+len(req.Messages))
	for _, s := range req.System {
		out = append(out, &schema.Message{Role: schema.System, Content: s})
	}
	for _, item := range req.Messages {
		out = append(out, toEinoMessagesForItem(item, req.Model)...)
	}
	return out
}

func toEinoMessagesForItem(item ConversationItem, current core.ModelRef) []*schema.Message {
	am, isAssistant := item.Message.(*core.AssistantMessage)

	// spec §4.8: provider-specific metadata (reasoning blobs, cache keys)
	// only survives replay when the message is being replayed back to the
	// same model/provider that produced it; a model switch drops it since
	// another provider can't interpret it.
	stripProviderMetadata := isAssistant && (am.ModelID != current.ModelID || am.ProviderID != current.ProviderID)

	if isAssistant && am.Error != nil {
		// A terminally-errored assistant turn is dropped unless it carries
		// reasoning, in which case only the reasoning survives.
		var reasoning string
		if !stripProviderMetadata {
			for _, p := range item.Parts {
				if rp, ok := p.(*core.ReasoningPart); ok {
					reasoning += rp.Text
				}
			}
		}
		if reasoning == "" {
			return nil
		}
		return []*schema.Message{{Role: schema.Assistant, Content: reasoning}}
	}

	role := schema.User
	if isAssistant {
		role = schema.Assistant
	}

	var content string
	var toolCalls []schema.ToolCall
	var toolResults []*schema.Message

	for _, p := range item.Parts {
		switch part := p.(type) {
		case *core.TextPart:
			if part.Ignored {
				continue
			}
			content += part.Text
		case *core.ReasoningPart:
			if stripProviderMetadata {
				// Drop the reasoning content itself, not just its metadata
				// blob: a different provider can neither verify a foreign
				// reasoning signature nor make sense of raw chain-of-thought
				// it didn't produce.
				continue
			}
			content += part.Text
		case *core.FilePart:
			content += fmt.Sprintf("[file: %s]", part.URL)
		case *core.ToolPart:
			var resultText string
			switch st := part.State.(type) {
			case core.ToolStateCompleted:
				toolCalls = append(toolCalls, schema.ToolCall{
					ID:       part.CallID,
					Function: schema.FunctionCall{Name: part.Tool, Arguments: string(st.Input)},
				})
				resultText = st.Output
			case core.ToolStateError:
				toolCalls = append(toolCalls, schema.ToolCall{
					ID:       part.CallID,
					Function: schema.FunctionCall{Name: part.Tool, Arguments: string(st.Input)},
				})
				resultText = "Error: " + st.Error
			case core.ToolStatePending, core.ToolStateRunning:
				toolCalls = append(toolCalls, schema.ToolCall{
					ID:       part.CallID,
					Function: schema.FunctionCall{Name: part.Tool},
				})
				resultText = interruptedToolMessage
			default:
				continue
			}
			toolResults = append(toolResults, &schema.Message{Role: schema.Tool, Content: resultText, ToolCallID: part.CallID})
		}
	}

	if content == "" && len(toolCalls) == 0 {
		return nil
	}

	msgs := []*schema.Message{{Role: role, Content: content, ToolCalls: toolCalls}}
	return append(msgs, toolResults...)
}

func toEinoToolInfos(tools []ToolSchema) []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			var parsed struct {
				Properties map[string]struct {
					Type        string `json:"type"`
					Description string `json:"description"`
				} `json:"properties"`
				Required []string `json:"required"`
			}
			if err := json.Unmarshal(t.Parameters, &parsed); err == nil {
				required := make(map[string]bool, len(parsed.Required))
				for _, r := range parsed.Required {
					required[r] = true
				}
				params = make(map[string]*schema.ParameterInfo, len(parsed.Properties))
				for name, prop := range parsed.Properties {
					pt := schema.String
					switch prop.Type {
					case "integer":
						pt = schema.Integer
					case "number":
						pt = schema.Number
					case "boolean":
						pt = schema.Boolean
					case "array":
						pt = schema.Array
					case "object":
						pt = schema.Object
					}
					params[name] = &schema.ParameterInfo{Type: pt, Desc: prop.Description, Required: required[name]}
				}
			}
		}
		out = append(out, &schema.ToolInfo{Name: t.Name, Desc: t.Description, ParamsOneOf: schema.NewParamsOneOfByParams(params)})
	}
	return out
}
