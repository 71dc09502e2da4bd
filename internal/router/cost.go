// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// COST ESTIMATION
// =============================================================================

// costTier pairs per-character dollar rates with the model IDs it covers.
// Rates are heuristic approximations of published per-token prices, not
// billing-accurate figures.
type costTier struct {
	// match selects models whose ID contains any of these substrings.
	match []string
	// input and output are dollar rates per character.
	input  float64
	output float64
}

// costTiers is checked in order; the first matching tier wins, so more
// specific and more expensive tiers must come before the catch-alls.
var costTiers = []costTier{
	// Frontier-class models
	{match: []string{"gpt-4o", "gpt-4-turbo", "claude-3-opus", "claude-3.5-sonnet", "gemini-1.5-pro", "gemini-2.5-pro"}, input: 0.0000040, output: 0.0000120},
	// Mid-range models
	{match: []string{"claude-3-sonnet", "claude-3-haiku", "gemini-1.5-flash", "gemini-2.0-flash", "gpt-4o-mini"}, input: 0.0000008, output: 0.0000024},
	// Small open-weight models
	{match: []string{"mistral-7b", "llama-3-8b", "llama-3-70b", "mixtral", "qwen", "gemma"}, input: 0.0000002, output: 0.0000006},
}

// defaultTier covers everything the table misses.
var defaultTier = costTier{input: 0.0000005, output: 0.0000015}

// Flat surcharge applied when the turn carries a file attachment, by
// provider prefix.
const (
	googleFileSurcharge     = 0.0005
	openRouterFileSurcharge = 0.0010
)

// EstimateCost estimates the dollar cost of one turn from the model ID,
// the input and output lengths in characters, and whether a file was
// attached. Pure function, no I/O.
//
// This is a display heuristic. Real billing is per token and varies by
// provider; the tier table only keeps relative magnitudes honest.
func EstimateCost(modelID string, inputLen, outputLen int, hasFile bool) float64 {
	if inputLen < 0 {
		inputLen = 0
	}
	if outputLen < 0 {
		outputLen = 0
	}

	tier := defaultTier
	for _, t := range costTiers {
		if matchesTier(modelID, t) {
			tier = t
			break
		}
	}

	cost := float64(inputLen)*tier.input + float64(outputLen)*tier.output

	if hasFile {
		if provider, _, ok := model.SplitModelID(modelID); ok && provider == model.ProviderOpenRouter {
			cost += openRouterFileSurcharge
		} else {
			cost += googleFileSurcharge
		}
	}

	return cost
}

func matchesTier(modelID string, t costTier) bool {
	for _, sub := range t.match {
		if strings.Contains(modelID, sub) {
			return true
		}
	}
	return false
}
