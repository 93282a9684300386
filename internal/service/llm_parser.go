package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"docflow/pkg/config"

	"github.com/Role1776/gigago"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

const fieldsSchema = `{
  "type": "object",
  "properties": {
    "invoiceNumber": {"type": "string"},
    "issueDate": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "dueDate": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "total": {"type": ["number", "string"]},
    "client": {"type": "string"},
    "matter": {"type": "string"}
  },
  "additionalProperties": false
}`

const fieldsInstruction = `You extract billing fields from legal invoices and receipts.
Reply with a single JSON object and nothing else. Use only these keys:
invoiceNumber, issueDate, dueDate, total, client, matter.
Dates must be YYYY-MM-DD. Omit any key you cannot find. Never invent values.`

type generateFunc func(ctx context.Context, prompt string) (string, error)

// LLMFieldParser asks GigaChat for the invoice fields and validates the
// answer against a JSON schema. Any failure falls back to another parser.
type LLMFieldParser struct {
	generate generateFunc
	close    func()
	schema   *jsonschema.Schema
	fallback FieldParser
	logger   *zap.Logger
}

func NewLLMFieldParser(cfg *config.GigaChatConfig, fallback FieldParser, logger *zap.Logger) (*LLMFieldParser, error) {
	ctx := context.Background()

	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = fieldsInstruction
	model.Temperature = 0.1

	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := model.Generate(ctx, []gigago.Message{
			{Role: gigago.RoleUser, Content: prompt},
		})
		if err != nil {
			return "", fmt.Errorf("failed to generate response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no response from LLM")
		}
		return resp.Choices[0].Message.Content, nil
	}

	p, err := newLLMFieldParser(generate, fallback, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	p.close = func() { client.Close() }
	logger.Info("LLM field extraction enabled", zap.String("model", cfg.Model))
	return p, nil
}

func newLLMFieldParser(generate generateFunc, fallback FieldParser, logger *zap.Logger) (*LLMFieldParser, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fields.json", strings.NewReader(fieldsSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("fields.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &LLMFieldParser{
		generate: generate,
		schema:   schema,
		fallback: fallback,
		logger:   logger,
	}, nil
}

func (p *LLMFieldParser) ParseFields(ctx context.Context, text string) (map[string]string, error) {
	text = strings.TrimSpace(text)
	if len(text) < 10 {
		return p.fallbackParse(ctx, text, fmt.Errorf("text too short: %d bytes", len(text)))
	}

	content, err := p.generate(ctx, "Document text:\n"+text)
	if err != nil {
		return p.fallbackParse(ctx, text, err)
	}

	fields, err := p.decode(content)
	if err != nil {
		return p.fallbackParse(ctx, text, err)
	}
	if len(fields) == 0 {
		return p.fallbackParse(ctx, text, ErrNoFields)
	}
	return fields, nil
}

// decode pulls the first JSON object out of content, which may be wrapped
// in a markdown fence or prose.
func (p *LLMFieldParser) decode(content string) (map[string]string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("invalid response format: %q", content)
	}
	raw := content[start : end+1]

	// Numbers stay json.Number so amounts keep every digit.
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if err := p.schema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	fields := make(map[string]string)
	for key, value := range v.(map[string]any) {
		switch val := value.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				fields[key] = s
			}
		case json.Number:
			fields[key] = val.String()
		}
	}
	return fields, nil
}

func (p *LLMFieldParser) fallbackParse(ctx context.Context, text string, cause error) (map[string]string, error) {
	p.logger.Warn("LLM field extraction failed, falling back", zap.Error(cause))
	if p.fallback == nil {
		return nil, cause
	}
	return p.fallback.ParseFields(ctx, text)
}

func (p *LLMFieldParser) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
