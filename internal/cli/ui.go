package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dyike/TickerGo/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(72)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(16)

	upStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	holdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}

// RenderPrice formats a price lookup for the terminal.
func RenderPrice(res *models.PriceResult) string {
	if res == nil {
		return errorStyle.Render("no price data")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("📈 "+res.Ticker) + "\n")

	switch {
	case res.Snapshot != nil:
		s := res.Snapshot
		change := formatPercent(s.ChangePercent)
		if s.ChangePercent.IsNegative() {
			change = downStyle.Render(change)
		} else {
			change = upStyle.Render(change)
		}
		b.WriteString(row("Price", FormatCurrency(&s.CurrentPrice)+"  "+change))
		b.WriteString(row("Open", FormatCurrency(&s.Open)))
		b.WriteString(row("High", FormatCurrency(&s.High)))
		b.WriteString(row("Low", FormatCurrency(&s.Low)))
		b.WriteString(row("Volume", FormatLargeNumber(&s.Volume)))
		b.WriteString(row("Market cap", FormatLargeNumber(s.MarketCap)))
		b.WriteString(row("As of", s.Timestamp))
	case res.Answer != "":
		b.WriteString(res.Answer + "\n")
	case res.Error != nil:
		b.WriteString(errorStyle.Render("❌ "+res.Error.Message) + "\n")
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func recommendationBadge(r models.Recommendation) string {
	switch r {
	case models.RecommendationBuy:
		return upStyle.Render("BUY")
	case models.RecommendationSell:
		return downStyle.Render("SELL")
	case models.RecommendationHold:
		return holdStyle.Render("HOLD")
	default:
		return mutedStyle.Render(notAvailable)
	}
}

// RenderAnalysis formats an analysis with its recommendation and run details.
func RenderAnalysis(a *models.Analysis) string {
	if a == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("🧠 Analysis: "+a.Ticker) + "\n")
	b.WriteString(row("Recommendation", recommendationBadge(a.Recommendation)))
	details := fmt.Sprintf("%d iteration(s), %s", a.Iterations, a.Termination)
	if a.FallbackUsed {
		details += ", fallback"
	}
	b.WriteString(row("Run", mutedStyle.Render(details)))
	b.WriteString("\n" + a.Text)

	return panelStyle.Render(b.String())
}
