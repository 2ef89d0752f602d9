package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/taskgraph/internal/toolregistry"
)

// registerDemoTools wires the handful of stateless, dependency-free tools
// this binary demonstrates the think-call-tool-observe loop against. Real
// deployments register their own domain tools against the same Registry
// before constructing an Agent; these exist only so `chat` has something to
// call without external services.
func registerDemoTools(reg *toolregistry.Registry) {
	mustRegister(reg, currentTimeTool())
	mustRegister(reg, textStatsTool())
}

func mustRegister(reg *toolregistry.Registry, tool toolregistry.ToolInfo) {
	if err := reg.Register(tool); err != nil {
		panic(fmt.Sprintf("taskgraphd: register built-in tool %q: %v", tool.Name, err))
	}
}

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name, defaults to UTC"`
}

func currentTimeTool() toolregistry.ToolInfo {
	schema, _ := toolregistry.GenerateSchema[currentTimeArgs]()
	return toolregistry.ToolInfo{
		Name:        "current_time",
		Description: "Returns the current time, optionally in a named timezone.",
		Parameters:  schema,
		Func: func(_ context.Context, args json.RawMessage) (any, error) {
			var parsed currentTimeArgs
			if len(args) > 0 {
				if err := json.Unmarshal(args, &parsed); err != nil {
					return nil, fmt.Errorf("current_time: %w", err)
				}
			}
			loc := time.UTC
			if parsed.Timezone != "" {
				l, err := time.LoadLocation(parsed.Timezone)
				if err != nil {
					return nil, fmt.Errorf("current_time: unknown timezone %q", parsed.Timezone)
				}
				loc = l
			}
			return time.Now().In(loc).Format(time.RFC3339), nil
		},
	}
}

type textStatsArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to measure"`
}

type textStatsResult struct {
	Characters int `json:"characters"`
	Words      int `json:"words"`
	Lines      int `json:"lines"`
}

func textStatsTool() toolregistry.ToolInfo {
	schema, _ := toolregistry.GenerateSchema[textStatsArgs]()
	return toolregistry.ToolInfo{
		Name:        "text_stats",
		Description: "Counts characters, words, and lines in a piece of text.",
		Parameters:  schema,
		Strict:      true,
		Func: func(_ context.Context, args json.RawMessage) (any, error) {
			var parsed textStatsArgs
			if err := json.Unmarshal(args, &parsed); err != nil {
				return nil, fmt.Errorf("text_stats: %w", err)
			}
			return textStatsResult{
				Characters: len([]rune(parsed.Text)),
				Words:      countWords(parsed.Text),
				Lines:      countLines(parsed.Text),
			}, nil
		},
	}
}

func countWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !isSpace && !inWord {
			count++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	return count
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	count := 1
	for _, r := range text {
		if r == '\n' {
			count++
		}
	}
	return count
}
