package wire

import "encoding/json"

// InspectReport is the producer's reply to an inspect request.
type InspectReport struct {
	Channels      InspectChannels `json:"channels"`
	TotalChannels int             `json:"totalChannels"`
	TotalData     int             `json:"totalData"`
}

// InspectChannels lists subscriber counts and stored data per channel.
// DataStore values are the stored JSON rendered as strings.
type InspectChannels struct {
	SubscriberCounts map[string]int    `json:"subscriberCounts"`
	DataStore        map[string]string `json:"dataStore"`
}

// DecodeInspectReport parses the data of an inspect reply.
func DecodeInspectReport(data json.RawMessage) (*InspectReport, error) {
	var r InspectReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
