package imports

import (
	"encoding/json"

	"github.com/manphil/backoffice/services/reservation-service/internal/outbox"
)

func summaryEvent(s Summary, actor string) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"batch_id": s.BatchID,
		"total":    s.Total,
		"imported": s.Imported,
		"failed":   s.Failed,
		"actor_id": actor,
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: outbox.AggregateImportBatch,
		AggregateID:   s.BatchID,
		EventType:     outbox.ImportCompleted,
		Payload:       payload,
	}, nil
}
