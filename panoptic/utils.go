package panoptic

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"

	"github.com/Luismorlan/zsxqintel/pipeline"
)

func NewCycleSummaryMessage(summary *pipeline.CycleSummary) (*message.Message, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, errors.Wrap(err, "fail to encode cycle summary")
	}
	return message.NewMessage(watermill.NewUUID(), data), nil
}

func ParseCycleSummaryMessage(msg *message.Message) (*pipeline.CycleSummary, error) {
	summary := &pipeline.CycleSummary{}
	if err := json.Unmarshal(msg.Payload, summary); err != nil {
		return nil, errors.Wrapf(err, "fail to decode cycle summary %s", msg.UUID)
	}
	return summary, nil
}

// StatusOf classifies a finished cycle for metric tags.
func StatusOf(summary *pipeline.CycleSummary) CycleStatus {
	switch {
	case summary.CredentialExpired:
		return CYCLE_CREDENTIAL_EXPIRED
	case summary.Error != "":
		return CYCLE_ERROR
	}
	return CYCLE_OK
}
