// Package federation implements the HTTP client side of the hypergrid
// gatekeeper protocol: linking a remote region, fetching its full
// descriptor and handing a session to the remote grid for admission.
package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/halcyongrid/logind/internal/domain"
	"github.com/halcyongrid/logind/internal/services"
)

const defaultTimeout = 30 * time.Second

// Client talks to remote gatekeepers. Safe for concurrent use.
type Client struct {
	http *http.Client
}

// NewClient creates a gatekeeper client; a zero timeout uses the default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

type linkRequest struct {
	RegionName string `json:"region_name"`
}

type linkResponse struct {
	Result      bool   `json:"result"`
	RegionID    string `json:"uuid"`
	Handle      uint64 `json:"handle"`
	RegionImage string `json:"region_image"`
	Reason      string `json:"reason"`
}

// LinkRegion performs the link handshake. A remote rejection surfaces
// the gatekeeper's reason verbatim.
func (c *Client) LinkRegion(ctx context.Context, gk *domain.Gatekeeper) (*services.RegionLink, error) {
	var resp linkResponse
	if err := c.post(ctx, gk.URL()+"/grid/link_region", linkRequest{RegionName: gk.RegionName}, &resp); err != nil {
		return nil, err
	}
	if !resp.Result {
		if resp.Reason == "" {
			resp.Reason = "gatekeeper refused the link"
		}
		return nil, errors.New(resp.Reason)
	}
	return &services.RegionLink{
		RegionID: resp.RegionID,
		Handle:   resp.Handle,
		ImageRef: resp.RegionImage,
	}, nil
}

type regionResponse struct {
	Result bool                     `json:"result"`
	Reason string                   `json:"reason"`
	Region *domain.RegionDescriptor `json:"region"`
}

// HyperlinkRegion fetches the descriptor the handshake identified.
func (c *Client) HyperlinkRegion(ctx context.Context, gk *domain.Gatekeeper, regionID string) (*domain.RegionDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gk.URL()+"/grid/region/"+regionID, nil)
	if err != nil {
		return nil, fmt.Errorf("build region request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch region %s: %w", regionID, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gatekeeper returned status %d for region %s", res.StatusCode, regionID)
	}

	var resp regionResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode region response: %w", err)
	}
	if !resp.Result || resp.Region == nil {
		if resp.Reason == "" {
			resp.Reason = "region not found"
		}
		return nil, errors.New(resp.Reason)
	}
	return resp.Region, nil
}

type agentRequest struct {
	Circuit     *domain.AgentCircuit     `json:"circuit"`
	Destination *domain.RegionDescriptor `json:"destination"`
	ClientIP    string                   `json:"client_ip"`
}

type agentResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
}

// LoginAgentToGrid asks the remote grid to admit the session at the
// destination region. A refusal is an error carrying the remote reason.
func (c *Client) LoginAgentToGrid(ctx context.Context, circuit *domain.AgentCircuit, gk *domain.Gatekeeper, destination *domain.RegionDescriptor, clientIP string) error {
	if gk == nil {
		// Local destination in a federated deployment: the owning grid
		// is the destination's own simulator.
		gk = &domain.Gatekeeper{Host: destination.HostName, Port: destination.Port}
	}

	var resp agentResponse
	payload := agentRequest{Circuit: circuit, Destination: destination, ClientIP: clientIP}
	if err := c.post(ctx, gk.URL()+"/grid/agent/"+circuit.SessionID, payload, &resp); err != nil {
		return err
	}
	if !resp.Success {
		if resp.Reason == "" {
			resp.Reason = "destination grid refused the session"
		}
		return errors.New(resp.Reason)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
