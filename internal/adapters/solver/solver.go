// Package solver holds the HTTP clients for the two numeric services:
// the thermodynamic equilibrium solver and the finite-element structural
// solver. Both speak a small JSON request/response protocol.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

// postJSON issues one POST and decodes the reply. Status codes pick the
// retry class: 5xx and 429 are transient, other non-2xx are permanent.
func postJSON(ctx context.Context, client *http.Client, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Permanent(fmt.Errorf("encode solver request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domain.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("solver returned %d: %s", resp.StatusCode, snippet)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return domain.Transient(err)
		}
		return domain.Permanent(err)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Transient(fmt.Errorf("decode solver response: %w", err))
	}
	return nil
}

// Thermo is the equilibrium solver client.
type Thermo struct {
	url         string
	databaseRef string
	client      *http.Client
}

// NewThermo creates the client. databaseRef names the thermodynamic
// database the solver should load, e.g. "TCNI12".
func NewThermo(url, databaseRef string) *Thermo {
	return &Thermo{url: url, databaseRef: databaseRef, client: &http.Client{}}
}

type thermoRequest struct {
	Elements     []string `json:"elements"`
	TemperatureK float64  `json:"temperature_k"`
	PressurePa   float64  `json:"pressure_pa"`
	DatabaseRef  string   `json:"database_ref,omitempty"`
}

// SolveEquilibrium implements ports.EquilibriumSolver.
func (t *Thermo) SolveEquilibrium(ctx context.Context, elements []string, temperatureK, pressurePa float64) (*domain.ThermoResult, error) {
	var result domain.ThermoResult
	err := postJSON(ctx, t.client, t.url, thermoRequest{
		Elements:     elements,
		TemperatureK: temperatureK,
		PressurePa:   pressurePa,
		DatabaseRef:  t.databaseRef,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Structural is the finite-element solver client.
type Structural struct {
	url    string
	client *http.Client
}

// NewStructural creates the client.
func NewStructural(url string) *Structural {
	return &Structural{url: url, client: &http.Client{}}
}

type structuralRequest struct {
	GeometryRef       string  `json:"geometry_ref"`
	ThermalLoadK      float64 `json:"thermal_load_k"`
	StructuralLoadMPa float64 `json:"structural_load_mpa"`
}

// SolveStructural implements ports.StructuralSolver.
func (s *Structural) SolveStructural(ctx context.Context, geometryRef string, thermalLoadK, structuralLoadMPa float64) (*domain.FEAResult, error) {
	var result domain.FEAResult
	err := postJSON(ctx, s.client, s.url, structuralRequest{
		GeometryRef:       geometryRef,
		ThermalLoadK:      thermalLoadK,
		StructuralLoadMPa: structuralLoadMPa,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
