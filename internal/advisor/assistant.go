package advisor

import (
	"context"
	"strings"

	"github.com/rohmanhakim/krishield/internal/llmtext"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

// Assistant answers free-form farming questions and photo diagnoses.
// Neither is cached.
type Assistant struct {
	generator Generator
}

func NewAssistant(generator Generator) *Assistant {
	return &Assistant{generator: generator}
}

func (a *Assistant) Ask(ctx context.Context, question string) (string, failure.ClassifiedError) {
	if strings.TrimSpace(question) == "" {
		return "", invalidInput("question", "is required")
	}
	text, err := a.generator.GenerateText(ctx, question)
	if err != nil {
		return "", err
	}
	return llmtext.NormalizeMarkup(text), nil
}

type Diagnosis struct {
	Analysis   string `json:"analysis"`
	Confidence string `json:"confidence"`
	Remedies   string `json:"remedies"`
}

func (a *Assistant) Diagnose(ctx context.Context, image []byte, mimeType, question string) (llmtext.Decoded[Diagnosis], failure.ClassifiedError) {
	if len(image) == 0 {
		return llmtext.Decoded[Diagnosis]{}, invalidInput("image", "is required")
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return llmtext.Decoded[Diagnosis]{}, invalidInput("mime_type", "must be an image type")
	}
	text, err := a.generator.AnalyzeImage(ctx, image, mimeType, question)
	if err != nil {
		return llmtext.Decoded[Diagnosis]{}, err
	}
	return ParseDiagnosis(text), nil
}

// ParseDiagnosis reads the **Analysis:** / **Confidence:** / **Remedies:**
// layout. Without an analysis the text is kept raw.
func ParseDiagnosis(text string) llmtext.Decoded[Diagnosis] {
	md := llmtext.NormalizeMarkup(text)
	labels := llmtext.Labels(md)

	var d Diagnosis
	d.Analysis, _ = llmtext.Lookup(labels, "Analysis")
	d.Confidence, _ = llmtext.Lookup(labels, "Confidence")
	d.Remedies, _ = llmtext.Lookup(labels, "Remedies")
	if d.Analysis == "" {
		return llmtext.RawText[Diagnosis](text)
	}
	return llmtext.Structured(d, text)
}
