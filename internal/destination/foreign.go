package destination

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/halcyongrid/logind/internal/domain"
	"github.com/halcyongrid/logind/internal/services"
)

// HypergridResolver resolves cross-grid addresses by performing the
// link handshake with the remote gatekeeper. It is only available when
// the deployment is configured with federation support; otherwise
// every call fails with ErrFederationDisabled.
//
// The resolver never retries a failed handshake; retry and fallback
// decisions belong to the launch chain, not here.
type HypergridResolver struct {
	gateway services.Federation
	enabled bool
}

// NewHypergridResolver creates a foreign-grid resolver. Passing
// enabled=false (or a nil gateway) yields a resolver that rejects
// every cross-grid address.
func NewHypergridResolver(gateway services.Federation, enabled bool) *HypergridResolver {
	return &HypergridResolver{gateway: gateway, enabled: enabled}
}

// ResolveForeign links the requested region on the remote grid and
// fetches its full descriptor. Remote rejections surface verbatim.
func (h *HypergridResolver) ResolveForeign(ctx context.Context, host string, port int, regionName string) (*domain.RegionDescriptor, *domain.Gatekeeper, error) {
	if !h.enabled || h.gateway == nil {
		return nil, nil, domain.ErrFederationDisabled
	}

	gk := &domain.Gatekeeper{Host: host, Port: port, RegionName: regionName}

	link, err := h.gateway.LinkRegion(ctx, gk)
	if err != nil {
		return nil, nil, fmt.Errorf("link region %q at %s: %w", regionName, gk.URL(), err)
	}
	slog.Debug("linked foreign region",
		"gatekeeper", gk.URL(), "region", regionName, "region_id", link.RegionID, "handle", link.Handle)

	region, err := h.gateway.HyperlinkRegion(ctx, gk, link.RegionID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch hyperlink region %s: %w", link.RegionID, err)
	}
	if region == nil {
		return nil, nil, fmt.Errorf("gatekeeper %s returned no descriptor for region %s", gk.URL(), link.RegionID)
	}
	return region, gk, nil
}
