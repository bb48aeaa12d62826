package analyzer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/Luismorlan/zsxqintel/model"
	"github.com/Luismorlan/zsxqintel/utils"
	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

const rawLogPreview = 500

// Analyzer turns post content into an AnalysisResult using one Classifier.
type Analyzer struct {
	classifier   Classifier
	systemPrompt string
}

func NewAnalyzer(classifier Classifier) *Analyzer {
	return &Analyzer{classifier: classifier, systemPrompt: SystemPrompt}
}

// Analyze classifies content. A nil result always comes with an error, the
// caller decides whether to move on. Defaults are applied to the result.
func (a *Analyzer) Analyze(ctx context.Context, content string) (*model.AnalysisResult, error) {
	raw, err := a.classifier.Classify(ctx, a.systemPrompt, content)
	if err != nil {
		return nil, errors.Wrap(err, "classification failed")
	}
	result, err := ParseAnalysisResult(raw)
	if err != nil {
		Logger.Log.WithField("raw", utils.TruncateRunes(raw, rawLogPreview)).Error("unparseable classification output")
		return nil, err
	}
	return result, nil
}

// ParseAnalysisResult decodes the model output. When the output is wrapped in
// prose or a code fence, the outermost {...} block is tried.
func ParseAnalysisResult(raw string) (*model.AnalysisResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "empty output")
	}

	var result model.AnalysisResult
	err := json.Unmarshal([]byte(raw), &result)
	if err == nil && !strings.HasPrefix(raw, "{") {
		// null, arrays and scalars decode without error but carry no result.
		err = errors.Errorf("top level is not a json object: %s", utils.TruncateRunes(raw, 50))
	}
	if err != nil {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, errors.Wrapf(ErrMalformedResponse, "no json object: %v", err)
		}
		result = model.AnalysisResult{}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
			return nil, errors.Wrapf(ErrMalformedResponse, "%v", err)
		}
	}
	result.ApplyDefaults()
	return &result, nil
}
