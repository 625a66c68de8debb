package gateway

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
)

// Registry holds the enabled payment gateways by provider name
type Registry struct {
	gateways map[string]port.PaymentGateway
}

// NewRegistry creates a registry from the given gateways, skipping nils
func NewRegistry(logger *zap.Logger, gateways ...port.PaymentGateway) *Registry {
	r := &Registry{gateways: make(map[string]port.PaymentGateway, len(gateways))}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		r.gateways[gw.Name()] = gw
		logger.Info("Payment gateway enabled", zap.String("provider", gw.Name()))
	}
	return r
}

// Get returns the gateway for a provider
func (r *Registry) Get(name string) (port.PaymentGateway, bool) {
	gw, ok := r.gateways[strings.ToLower(name)]
	return gw, ok
}

// Names lists enabled providers in a stable order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// toMinorUnits converts a two-decimal amount into cents
func toMinorUnits(amount decimal.Decimal) (int64, error) {
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-cent precision", amount.String())
	}
	return cents.IntPart(), nil
}

func fromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// packMetadata flattens intent metadata into a single provider reference
// field for providers that only carry one opaque string.
func packMetadata(meta map[string]string) string {
	values := url.Values{}
	for k, v := range meta {
		values.Set(k, v)
	}
	return values.Encode()
}

func unpackMetadata(s string) map[string]string {
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil
	}
	meta := make(map[string]string, len(values))
	for k := range values {
		meta[k] = values.Get(k)
	}
	return meta
}
