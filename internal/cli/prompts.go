package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

const (
	actionPrice   = "Get stock price"
	actionAnalyze = "Analyze stock"
	actionReset   = "Reset conversation memory"
	actionExit    = "Exit"
)

var tickerFormat = regexp.MustCompile(`^[A-Z0-9.^=-]+$`)

// validateTicker is the survey validator used for ticker input.
func validateTicker(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("invalid ticker input")
	}
	str = strings.TrimSpace(strings.ToUpper(str))
	if len(str) == 0 {
		return fmt.Errorf("ticker symbol cannot be empty")
	}
	if len(str) > 12 {
		return fmt.Errorf("ticker symbol too long (max 12 characters)")
	}
	if !tickerFormat.MatchString(str) {
		return fmt.Errorf("invalid ticker format (use letters, numbers, dots and hyphens)")
	}
	return nil
}

// PromptForTicker asks for a stock ticker symbol.
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "The symbol is looked up on Yahoo Finance",
	}
	if err := survey.AskOne(prompt, &ticker, survey.WithValidator(validateTicker)); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

// PromptForAction asks what to do next in chat mode.
func PromptForAction() (string, error) {
	var action string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{actionPrice, actionAnalyze, actionReset, actionExit},
		Default: actionAnalyze,
	}
	if err := survey.AskOne(prompt, &action); err != nil {
		return "", err
	}
	return action, nil
}
