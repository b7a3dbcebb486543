/*
Package aeroforge is a pipeline orchestration engine for AI-assisted
materials discovery. It turns a natural-language material request into a
validated alloy formulation and a simulated performance report, driving
external collaborators (a reasoning model, a literature vector store,
thermodynamic and structural solvers) through a fixed five-stage
pipeline: discovery, research, refinement, simulation, synthesis.

# Architecture

The engine is built around a single session state record that stages may
only extend, never rewrite: each stage owns a fixed set of state keys and
every write is validated against the entity invariants before it becomes
visible. External calls all pass through a tool gateway that retries
transient failures with capped exponential backoff and degrades to
explicit, provenance-tagged fallbacks when a collaborator stays down.
The refinement stage runs a bounded generator-critic loop: the reasoning
collaborator proposes candidates, the thermodynamic solver rejects the
unstable ones, and rejection feedback shapes the next proposal.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aeroforge/aeroforge"
		"github.com/aeroforge/aeroforge/pkg/config"
	)

	func main() {
		cfg, err := config.Load("aeroforge.yaml")
		if err != nil {
			log.Fatal(err)
		}

		engine, err := aeroforge.New(cfg)
		if err != nil {
			log.Fatal(err)
		}

		state, err := engine.Run(context.Background(),
			"I need a turbine blade alloy for 1000K service")
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println("formulation:", state.FinalFormulation.Matrix)
		for _, w := range state.Warnings {
			fmt.Println("warning:", w)
		}
	}

Every run returns a structured result: the final state snapshot carries
whatever stages completed, the accumulated warnings from degraded paths,
and either a final formulation with its simulation or a failure reason.
*/
package aeroforge

// Version is the engine version, overridable at build time.
var Version = "0.1.0"
