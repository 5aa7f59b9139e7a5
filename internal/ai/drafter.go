package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"autoshop-crm/internal/core"
)

// ErrUnavailable is returned when no OpenAI API key is configured.
var ErrUnavailable = errors.New("follow-up drafting is not configured")

// FollowUpDraft is a suggested customer follow-up. It is never stored
// automatically; staff post the accepted text as a follow-up note.
type FollowUpDraft struct {
	Subject       string `json:"subject" jsonschema:"description=Short subject line for the message"`
	Message       string `json:"message" jsonschema:"description=Friendly follow-up message to the customer, plain text"`
	SuggestedDays int    `json:"suggested_days" jsonschema:"description=Days after the sale to send the message,minimum=1,maximum=90"`
}

func (d *FollowUpDraft) Normalize() {
	d.Subject = strings.TrimSpace(d.Subject)
	d.Message = strings.TrimSpace(d.Message)
}

func (d FollowUpDraft) Validate() error {
	if d.Subject == "" {
		return fmt.Errorf("draft subject is empty")
	}
	if d.Message == "" {
		return fmt.Errorf("draft message is empty")
	}
	if d.SuggestedDays < 1 || d.SuggestedDays > 90 {
		return fmt.Errorf("suggested_days %d out of range 1..90", d.SuggestedDays)
	}
	return nil
}

type Drafter interface {
	DraftFollowUp(ctx context.Context, rec *core.SalesRecord, customerName string) (*FollowUpDraft, error)
}

type FollowUpDrafter struct {
	client *openai.Client
}

// NewFollowUpDrafter returns a drafter that reports ErrUnavailable when apiKey is empty.
func NewFollowUpDrafter(apiKey string) *FollowUpDrafter {
	if apiKey == "" {
		return &FollowUpDrafter{}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &FollowUpDrafter{client: &client}
}

func (d *FollowUpDrafter) Enabled() bool { return d.client != nil }

func (d *FollowUpDrafter) DraftFollowUp(ctx context.Context, rec *core.SalesRecord, customerName string) (*FollowUpDraft, error) {
	if !d.Enabled() {
		return nil, ErrUnavailable
	}

	schemaMap, err := draftSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(BuildFollowUpPrompt(rec, customerName)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "follow_up_draft",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A follow-up message for a customer after an auto-repair sale"),
				},
			},
		},
	}

	resp, err := d.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}
	return ParseFollowUpDraft(resp.OutputText())
}

// BuildFollowUpPrompt describes the sale to the model. Prices are included so
// the message can reference the work done; internal ids are not.
func BuildFollowUpPrompt(rec *core.SalesRecord, customerName string) string {
	var items strings.Builder
	for _, it := range rec.Items {
		fmt.Fprintf(&items, "- %s x%d (%s)\n", it.Name, it.Quantity, it.TotalPrice.StringFixed(2))
	}
	name := strings.TrimSpace(customerName)
	if name == "" {
		name = "the customer"
	}
	return fmt.Sprintf(`You write follow-up messages for an auto-repair shop.
Write a short, friendly message to %s about their recent visit.
Rules:
1. Thank them and mention the work performed.
2. Do not invent prices, discounts or services that are not listed.
3. Suggest how many days after the sale the message should go out (1-90).

Sale %s on %s, total %s:
%s`, name, rec.RecordNumber, rec.SaleDate.UTC().Format("2006-01-02"), rec.Total.StringFixed(2), items.String())
}

// ParseFollowUpDraft decodes and validates the model's structured output.
func ParseFollowUpDraft(content string) (*FollowUpDraft, error) {
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}
	var draft FollowUpDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("draft validation failed: %w", err)
	}
	return &draft, nil
}

func draftSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(&FollowUpDraft{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
