// Package composer turns a natural-language goal into a scored, executable
// pipeline proposal: classify the goal into capabilities, pick one catalog
// workflow per capability, wire consecutive steps together by schema
// compatibility, and score the result.
package composer

import "strings"

// Capability is a coarse tag used to classify both goals and workflows.
type Capability string

const (
	CapPriceFeed  Capability = "price-feed"
	CapDexSwap    Capability = "dex-swap"
	CapAlert      Capability = "alert"
	CapCompliance Capability = "compliance"
	CapTransfer   Capability = "transfer"
	CapEVMWrite   Capability = "evm-write"
	CapAggregate  Capability = "aggregate"
	CapMonitor    Capability = "monitor"
)

// capabilityKeywords is a closed table: a new capability is a new row, not a
// new type. Row order is significant: classification output and therefore
// step order follow it.
var capabilityKeywords = []struct {
	Tag      Capability
	Keywords []string
}{
	{CapPriceFeed, []string{"price", "quote", "oracle", "feed", "ticker", "market data"}},
	{CapDexSwap, []string{"swap", "dex", "liquidity", "uniswap", "trade"}},
	{CapAlert, []string{"alert", "notify", "notification", "telegram", "discord", "email"}},
	{CapCompliance, []string{"compliance", "kyc", "aml", "sanction", "screen"}},
	{CapTransfer, []string{"transfer", "payout", "payment", "send funds", "disburse"}},
	{CapEVMWrite, []string{"mint", "contract call", "on-chain", "onchain", "write to chain"}},
	{CapAggregate, []string{"aggregate", "combine", "merge", "summar", "report"}},
	{CapMonitor, []string{"monitor", "watch", "track", "observe"}},
}

// keywordsFor returns the keyword list for a capability tag.
func keywordsFor(tag Capability) []string {
	for _, row := range capabilityKeywords {
		if row.Tag == tag {
			return row.Keywords
		}
	}
	return nil
}

// ClassifyGoal maps a free-text goal to the capabilities it mentions, in
// table order. A capability is present when any of its keywords occurs as a
// substring of the lower-cased goal. The result is never empty: an
// unclassifiable goal defaults to price-feed so composition has an anchor.
func ClassifyGoal(goal string) []Capability {
	lower := strings.ToLower(goal)
	var caps []Capability
	for _, row := range capabilityKeywords {
		for _, kw := range row.Keywords {
			if strings.Contains(lower, kw) {
				caps = append(caps, row.Tag)
				break
			}
		}
	}
	if len(caps) == 0 {
		caps = []Capability{CapPriceFeed}
	}
	return caps
}

// NeedsPipeline reports whether a goal spans two or more capabilities.
// Single-capability goals route to direct single-workflow execution; that
// decision belongs to the caller, this only supplies the classification.
func NeedsPipeline(goal string) bool {
	return len(ClassifyGoal(goal)) >= 2
}
