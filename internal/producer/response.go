package producer

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/extract"
	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/KaramelBytes/chartloom-cli/internal/record"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

const (
	// VisionPrompt accompanies a chart image sent to a vision model.
	VisionPrompt = "You are an expert data analyst. Analyze the chart in this image and extract its data as a JSON array. Respond with JSON only. Each object must have the shape {name: string, value: number}."
	// GeneratePrompt is the system instruction for generating a dataset
	// from a free-text request.
	GeneratePrompt = "Produce a dataset as a JSON array. Keys must be in English and consistent across objects (for example name, value, date, category). Values may be numbers or text. Do not use Markdown."
	// insightBudget bounds the dataset excerpt in an insight prompt, in tokens.
	insightBudget = 250
)

// Request is what a Responder is asked.
type Request struct {
	Prompt string
	System string
	// Image and MimeType are set for vision requests.
	Image    []byte
	MimeType string
}

// VisionRequest asks for the data behind a chart image.
func VisionRequest(image []byte, mimeType string) Request {
	return Request{Prompt: VisionPrompt, Image: image, MimeType: mimeType}
}

// GenerateRequest asks for a synthetic dataset described by prompt.
func GenerateRequest(prompt string) Request {
	return Request{Prompt: prompt, System: GeneratePrompt}
}

// Responder is an external text or vision model. The transport is up to
// the implementation.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, req Request) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ResponseProducer asks a Responder and extracts the JSON array from its
// answer.
type ResponseProducer struct {
	Responder Responder
	Request   Request
}

func (p ResponseProducer) Produce(ctx context.Context) (Input, error) {
	if p.Responder == nil {
		return Input{}, fmt.Errorf("no responder configured")
	}
	raw, err := p.Responder.Respond(ctx, p.Request)
	if err != nil {
		return Input{}, fmt.Errorf("responder: %w", err)
	}
	cleaned, ok := extract.CleanResponse(raw)
	if !ok {
		return Input{}, fmt.Errorf("response format not understood: %w", pipeline.ErrNoData)
	}
	return Input{Kind: pipeline.KindJSON, Text: cleaned, Source: "ai"}, nil
}

// InsightPrompt builds the request for a short AI commentary on the
// displayed dataset. The compact JSON of seq is cut to a fixed budget.
func InsightPrompt(seq record.Sequence) (Request, error) {
	var b strings.Builder
	if err := record.Encode(&b, seq, false); err != nil {
		return Request{}, fmt.Errorf("encode records: %w", err)
	}
	excerpt, _ := utils.TruncateToTokenLimit(strings.TrimSuffix(b.String(), "\n"), insightBudget)
	prompt := fmt.Sprintf("As a data analyst, interpret this JSON data: %s... Write 3 bullet points.", excerpt)
	return Request{Prompt: prompt}, nil
}
