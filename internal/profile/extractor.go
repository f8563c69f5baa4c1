package profile

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bellhop/pkg/llm"
	"bellhop/pkg/logging"
)

const extractorSystemPrompt = "You are a business information extractor. " +
	"Read the website content and conversation, then answer with nothing but the requested JSON object."

// Extractor runs one model call per registered field and turns the responses
// into merge-ready fragments.
type Extractor struct {
	provider llm.Provider
	logger   logging.Logger
	fields   []FieldSpec
}

func NewExtractor(provider llm.Provider, logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Extractor{
		provider: provider,
		logger:   logger,
		fields:   Fields,
	}
}

// ExtractAll fans out one extraction per field and joins before returning.
// Every field completes, successfully or as an empty fragment; one field's
// failure never aborts the others. Results are in registry order.
func (e *Extractor) ExtractAll(ctx context.Context, corpus string, transcript []llm.Message, source Source) []Fragment {
	fragments := make([]Fragment, len(e.fields))

	g, gctx := errgroup.WithContext(ctx)
	for i, field := range e.fields {
		i, field := i, field
		g.Go(func() error {
			start := time.Now()
			frag, err := e.extractField(gctx, field, corpus, transcript, source)
			extractDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				extractCallsTotal.WithLabelValues(field.Name, "error").Inc()
				if e.logger != nil {
					e.logger.WithField("field", field.Name).WithError(err).Warn("Field extraction failed, treating as empty")
				}
				return nil
			}
			if frag.IsEmpty() {
				extractCallsTotal.WithLabelValues(field.Name, "empty").Inc()
			} else {
				extractCallsTotal.WithLabelValues(field.Name, "ok").Inc()
			}
			fragments[i] = frag
			return nil
		})
	}
	_ = g.Wait()

	return fragments
}

func (e *Extractor) extractField(ctx context.Context, field FieldSpec, corpus string, transcript []llm.Message, source Source) (Fragment, error) {
	var conversation strings.Builder
	for _, msg := range transcript {
		conversation.WriteString(msg.Role)
		conversation.WriteString(": ")
		conversation.WriteString(msg.Content)
		conversation.WriteString("\n")
	}

	messages := []llm.Message{
		{Role: "system", Content: extractorSystemPrompt + " " + field.Prompt},
		{Role: "user", Content: "Website Content:\n" + corpus + "\n\nConversation:\n" + conversation.String()},
	}

	reply, err := e.provider.Complete(ctx, messages)
	if err != nil {
		return Fragment{Field: field.Name}, err
	}

	value, confidence, ok := parseExtraction(reply, field.Shape)
	if !ok {
		// Malformed model output degrades to an empty fragment, never an error
		// that could abort the fan-out.
		if e.logger != nil {
			e.logger.WithField("field", field.Name).Warn("Unparsable extraction response, treating as empty")
		}
		return Fragment{Field: field.Name}, nil
	}

	return Fragment{
		Field:      field.Name,
		Value:      value,
		Confidence: confidence,
		Source:     source,
	}, nil
}

// parseExtraction decodes a {"value": ..., "confidence": ...} reply, tolerating
// markdown code fences and shape-appropriate value encodings.
func parseExtraction(reply string, shape Shape) (Value, float64, bool) {
	cleaned := stripCodeFence(reply)

	var envelope struct {
		Value      json.RawMessage `json:"value"`
		Confidence float64         `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return Value{}, 0, false
	}
	if len(envelope.Value) == 0 || string(envelope.Value) == "null" {
		return Value{}, envelope.Confidence, true
	}

	switch shape {
	case ShapeScalar:
		var s string
		if err := json.Unmarshal(envelope.Value, &s); err == nil {
			return Value{Scalar: strings.TrimSpace(s)}, envelope.Confidence, true
		}
		// Some models answer numbers unquoted (years in business).
		var n float64
		if err := json.Unmarshal(envelope.Value, &n); err == nil {
			return Value{Scalar: strconv.FormatFloat(n, 'f', -1, 64)}, envelope.Confidence, true
		}
		return Value{}, 0, false

	case ShapeList:
		var list []string
		if err := json.Unmarshal(envelope.Value, &list); err != nil {
			return Value{}, 0, false
		}
		var trimmed []string
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				trimmed = append(trimmed, item)
			}
		}
		return Value{List: trimmed}, envelope.Confidence, true

	case ShapeMap:
		var m map[string]string
		if err := json.Unmarshal(envelope.Value, &m); err != nil {
			return Value{}, 0, false
		}
		for k, v := range m {
			if strings.TrimSpace(v) == "" {
				delete(m, k)
			}
		}
		return Value{Map: m}, envelope.Confidence, true
	}
	return Value{}, 0, false
}

func stripCodeFence(reply string) string {
	cleaned := strings.TrimSpace(reply)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}
