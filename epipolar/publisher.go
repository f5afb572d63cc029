package epipolar

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ResultSummary is the per-request entry of the combined results topic
type ResultSummary struct {
	ID          string  `json:"id"`
	Status      Status  `json:"status"`
	InlierCount int     `json:"inlierCount"`
	Total       int     `json:"total"`
	Trials      int     `json:"trials"`
	Ratio       float64 `json:"ratio"`
	Timestamp   int64   `json:"timestamp"`
}

// NewResultSummary condenses a tracked result
func NewResultSummary(tr *TrackedResult) ResultSummary {
	return ResultSummary{
		ID:          tr.ID,
		Status:      tr.Result.Status,
		InlierCount: tr.Result.InlierCount,
		Total:       tr.Result.Total,
		Trials:      tr.Result.Trials,
		Ratio:       tr.Result.InlierRatio(),
		Timestamp:   tr.ComputedAt.Unix(),
	}
}

// resultPayload is published to <prefix>/<id>/result
type resultPayload struct {
	ID         string           `json:"id"`
	Result     Result           `json:"result"`
	Inliers    []Correspondence `json:"inlierMatches"`
	DurationMs float64          `json:"durationMs"`
	Timestamp  int64            `json:"timestamp"`
}

// Publisher publishes estimation results to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	summaries     map[string]*ResultSummary
	mu            sync.RWMutex
}

// NewPublisher creates a result publisher. prefix is overridden by
// MQTT_PUBLISH_PREFIX and defaults to "epiransac". A nil client disables
// publishing.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	prefix = envOr("MQTT_PUBLISH_PREFIX", prefix, "epiransac")

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true,
		summaries:     make(map[string]*ResultSummary),
	}
}

// PublishResult publishes a result to its own topic and refreshes the
// combined summary topic
func (p *Publisher) PublishResult(tr *TrackedResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	summary := NewResultSummary(tr)

	p.mu.Lock()
	p.summaries[tr.ID] = &summary
	p.mu.Unlock()

	if err := p.publishIndividual(tr); err != nil {
		log.Printf("Error publishing result for %s: %v", tr.ID, err)
		return err
	}
	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined results: %v", err)
		return err
	}
	return nil
}

func (p *Publisher) publishIndividual(tr *TrackedResult) error {
	topic := fmt.Sprintf("%s/%s/result", p.publishPrefix, tr.ID)

	payload, err := json.Marshal(resultPayload{
		ID:         tr.ID,
		Result:     tr.Result,
		Inliers:    tr.Inliers,
		DurationMs: float64(tr.Duration) / float64(time.Millisecond),
		Timestamp:  tr.ComputedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published result for %s: %d/%d inliers (%s)",
		tr.ID, tr.Result.InlierCount, tr.Result.Total, tr.Result.Status)
	return nil
}

func (p *Publisher) publishCombined() error {
	summaries := p.Summaries()
	if len(summaries) == 0 {
		return nil
	}

	topic := fmt.Sprintf("%s/results", p.publishPrefix)
	message := map[string]interface{}{
		"results":   summaries,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined results: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// Summaries returns copies of all published summaries ordered by ID
func (p *Publisher) Summaries() []ResultSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]ResultSummary, 0, len(p.summaries))
	for _, s := range p.summaries {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
