// Package simulation admits agents directly at the simulator hosting a
// region, for deployments that run without a federation gateway.
package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/halcyongrid/logind/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client posts agent circuits to simulators. Safe for concurrent use.
type Client struct {
	http *http.Client
}

// NewClient creates a simulator client; a zero timeout uses the default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

type createAgentRequest struct {
	Circuit *domain.AgentCircuit `json:"circuit"`
	Flags   uint32               `json:"teleport_flags"`
}

type createAgentResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
}

// CreateAgent asks the region's simulator to admit the circuit. A
// refusal is an error carrying the simulator's reason.
func (c *Client) CreateAgent(ctx context.Context, region *domain.RegionDescriptor, circuit *domain.AgentCircuit, flags domain.TeleportFlags) error {
	payload, err := json.Marshal(createAgentRequest{Circuit: circuit, Flags: uint32(flags)})
	if err != nil {
		return fmt.Errorf("encode agent request: %w", err)
	}

	url := region.BaseURL() + "/agent/" + circuit.UserID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call simulator %s: %w", region.Endpoint(), err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("simulator %s returned status %d", region.Endpoint(), res.StatusCode)
	}

	var resp createAgentResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decode simulator response: %w", err)
	}
	if !resp.Success {
		if resp.Reason == "" {
			resp.Reason = "simulator refused the agent"
		}
		return errors.New(resp.Reason)
	}
	return nil
}
