// cmd/display.go - Shared verdict formatting helpers
package cmd

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/CodeMonkeyCybersecurity/hera/pkg/advice"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

func colorTier(tier types.Tier) string {
	switch tier {
	case types.TierSafe:
		return color.New(color.FgGreen).Sprint("SAFE      ")
	case types.TierSuspicious:
		return color.New(color.FgYellow, color.Bold).Sprint("SUSPICIOUS")
	case types.TierMalicious:
		return color.New(color.FgRed, color.Bold).Sprint("MALICIOUS ")
	default:
		return string(tier)
	}
}

func printReport(report *types.RiskReport) {
	fmt.Printf("%s %s  score %.0f/100\n", colorTier(report.Tier), report.URL, report.Score)

	if report.Whitelisted {
		color.White("  domain is whitelisted; findings below are informational")
	}

	for _, f := range report.Findings {
		fmt.Printf("  • %-28s %5.1f  %s\n", f.Kind, f.Weight, f.Evidence)
	}

	for source, status := range report.Extractors {
		if status != types.StatusOK {
			color.Yellow("  ⟳ %s: %s", source, status)
		}
	}

	for _, line := range advice.Recommendations(report) {
		color.White("  → %s", line)
	}
	fmt.Println()
}
