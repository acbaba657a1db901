package domain

import "time"

// Template is a provider-agnostic templated outbound message.
// ButtonValues holds one slice of parameters per template button.
type Template struct {
	Name         string     `json:"name"`
	Language     string     `json:"languageCode"`
	BodyValues   []string   `json:"bodyValues,omitempty"`
	ButtonValues [][]string `json:"buttonValues,omitempty"`
}

// InboundMessage is a user message reported by the delivery provider's webhook.
type InboundMessage struct {
	Phone       string    `json:"phone"`
	CountryCode string    `json:"country_code"`
	Text        string    `json:"text"`
	ReceivedAt  time.Time `json:"received_at"`
}
