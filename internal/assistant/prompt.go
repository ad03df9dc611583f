package assistant

import (
	"fmt"
	"strings"

	"github.com/fanvise/fanvise/go-assistant/internal/store"
)

// persona is the assistant's standing instruction, always first in the
// system prompt. Grounding blocks and compliance rules follow it.
const persona = `You are FanVise, a fantasy basketball assistant. You help managers with lineups, waivers, and trades in their league. Ground every answer in the roster and news context you are given; when the context does not cover a question, say so instead of guessing. Player availability is never certain, so speak in likelihoods, not promises.`

// #region blocks

// TeamBlock renders a synced team as a [TEAM CONTEXT] prompt block.
// Returns "" when there is nothing to show.
func TeamBlock(tc store.TeamContext, nameOverride string) string {
	name := nameOverride
	if name == "" {
		name = tc.Team.TeamName
	}
	if name == "" {
		name = tc.Team.DisplayName
	}
	if name == "" && len(tc.Players) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[TEAM CONTEXT]\n")
	fmt.Fprintf(&b, "Team: %s (record %d-%d-%d, %.1f pts)\n",
		name, tc.Team.Wins, tc.Team.Losses, tc.Team.Ties, tc.Team.PointsFor)

	writeGroup := func(label, slot string) {
		var lines []string
		for _, rp := range tc.Players {
			if rp.Slot != slot {
				continue
			}
			line := fmt.Sprintf("- %s (%s, %s)", rp.FullName, rp.Position, rp.Team)
			if rp.InjuryStatus != "" {
				line += fmt.Sprintf(" [%s", rp.InjuryStatus)
				if rp.InjuryNotes != "" {
					line += ": " + rp.InjuryNotes
				}
				line += "]"
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			return
		}
		b.WriteString(label + ":\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	writeGroup("Starters", store.SlotStarter)
	writeGroup("Bench", store.SlotBench)
	return strings.TrimRight(b.String(), "\n")
}

// NewsBlock renders recent headlines as a [RECENT NEWS] prompt block.
// Returns "" when there are no items.
func NewsBlock(items []store.NewsItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[RECENT NEWS]\n")
	for _, n := range items {
		line := "- " + n.Headline
		if !n.PublishedAt.IsZero() {
			line += " (" + n.PublishedAt.Format("Jan 2") + ")"
		}
		b.WriteString(line + "\n")
		if n.Summary != "" {
			b.WriteString("  " + n.Summary + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildInstruction assembles the system instruction: persona first, then
// grounding blocks, then the compliance contract. Empty pieces are skipped.
func buildInstruction(blocks []string, contract string) string {
	parts := []string{persona}
	for _, blk := range blocks {
		if blk != "" {
			parts = append(parts, blk)
		}
	}
	if contract != "" {
		parts = append(parts, contract)
	}
	return strings.Join(parts, "\n\n")
}

// #endregion blocks
