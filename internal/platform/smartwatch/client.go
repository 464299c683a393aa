package smartwatch

import (
	"context"

	"medical-triage-agent/internal/triage"
)

// Client simulates the smartwatch management-app integration. A real
// deployment would call the vendor API here; this stub returns the same
// synthetic reading set on every call.
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) Fetch(ctx context.Context) triage.VitalSigns {
	return triage.VitalSigns{
		HeightCM:          175,
		WeightKG:          70,
		SystolicPressure:  120,
		DiastolicPressure: 80,
		BloodOxygenPct:    98,
		StressLevel:       "Baixo",
	}
}
