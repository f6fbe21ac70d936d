package agents

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dyike/TickerGo/internal/tools"
)

const finalAnswerMarker = "Final Answer:"

var (
	actionPattern      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyPattern  = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)`)
	actionInputPattern = regexp.MustCompile(`(?s)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	thoughtPrefix      = regexp.MustCompile(`(?i)^\s*thought\s*:\s*`)
)

// Decision is the parsed form of one model completion.
type Decision struct {
	Thought string
	// Final is set when the completion carries a final answer.
	Final     bool
	Answer    string
	Tool      tools.Kind
	ToolName  string
	ToolInput string
}

// ParseError is a completion that does not follow the Thought/Action grammar.
// Its message is fed back to the model as the step's observation.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	errMissingAction      = &ParseError{Msg: "Invalid Format: Missing 'Action:' after 'Thought:'"}
	errMissingActionInput = &ParseError{Msg: "Invalid Format: Missing 'Action Input:' after 'Action:'"}
	errBothActionAndFinal = &ParseError{Msg: "Parsing LLM output produced both a final answer and a parse-able action. Respond with either an Action or a Final Answer, not both."}
)

// ParseOutput reads a ReAct completion.
func ParseOutput(text string) (*Decision, error) {
	hasFinal := strings.Contains(text, finalAnswerMarker)
	thought := extractThought(text)

	if m := actionPattern.FindStringSubmatch(text); m != nil {
		if hasFinal {
			return &Decision{Thought: thought}, errBothActionAndFinal
		}

		name := strings.TrimSpace(m[1])
		input := m[2]
		if idx := strings.Index(input, "\nObservation"); idx >= 0 {
			input = input[:idx]
		}
		input = strings.Trim(strings.TrimSpace(input), `"`)

		d := &Decision{Thought: thought, ToolName: name, ToolInput: input}
		kind, err := tools.ParseKind(name)
		if err != nil {
			return d, &ParseError{Err: err}
		}
		d.Tool = kind
		return d, nil
	}

	if hasFinal {
		parts := strings.Split(text, finalAnswerMarker)
		return &Decision{
			Thought: thought,
			Final:   true,
			Answer:  strings.TrimSpace(parts[len(parts)-1]),
		}, nil
	}

	if !actionOnlyPattern.MatchString(text) {
		return &Decision{Thought: thought}, errMissingAction
	}
	if !actionInputPattern.MatchString(text) {
		return &Decision{Thought: thought}, errMissingActionInput
	}
	return &Decision{Thought: thought}, &ParseError{Msg: fmt.Sprintf("Could not parse LLM output: %q", text)}
}

// observationFor renders a parse failure as corrective feedback.
func observationFor(err error) string {
	var unknown *tools.UnknownToolError
	if errors.As(err, &unknown) {
		return unknown.Error()
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		return perr.Error()
	}
	return "Invalid or incomplete response: " + err.Error()
}

func extractThought(text string) string {
	cut := len(text)
	for _, marker := range []string{"Action:", finalAnswerMarker} {
		if idx := strings.Index(text, marker); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return strings.TrimSpace(thoughtPrefix.ReplaceAllString(text[:cut], ""))
}
