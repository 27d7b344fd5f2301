package cli

import (
	"fmt"
	"sort"

	"github.com/stockpile-io/stockpile/internal/config"
	"github.com/stockpile-io/stockpile/internal/engine"
)

// colorize returns the ANSI code, or nothing when colors are disabled.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

// loadConfig builds the runtime configuration and applies CLI overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if stateOverride != "" {
		cfg.StatePath = stateOverride
	}
	return cfg, nil
}

func stepSymbol(action string) string {
	switch action {
	case engine.ActionCreated:
		return "+"
	case engine.ActionReused:
		return "~"
	case engine.ActionDeleted:
		return "-"
	case engine.ActionSkipped, engine.ActionFailed:
		return "!"
	}
	return " "
}

func stepColor(action string) string {
	switch action {
	case engine.ActionCreated:
		return "\033[32m"
	case engine.ActionReused, engine.ActionSkipped:
		return "\033[33m"
	case engine.ActionDeleted, engine.ActionFailed:
		return "\033[31m"
	}
	return ""
}

// formatStep renders a step event as a plan-style line, without color.
func formatStep(ev engine.StepEvent) string {
	label := ev.Name
	if label == "" {
		label = ev.Key.Name
	}

	detail := ev.Detail
	switch {
	case ev.Err != nil:
		detail = ev.Err.Error()
	case detail == "" && ev.Action == engine.ActionReused:
		detail = "already present"
	}

	line := fmt.Sprintf("%s %-8s %s", stepSymbol(ev.Action), ev.Key.Kind, label)
	if detail != "" {
		line += " (" + detail + ")"
	}
	return line
}

// renderStep prints one engine step outcome.
func renderStep(ev engine.StepEvent) {
	fmt.Printf("  %s%s%s\n", colorize(stepColor(ev.Action)), formatStep(ev), colorize("\033[0m"))
}

// printOutputs prints deployment outputs in stable order.
func printOutputs(outputs map[string]string) {
	if len(outputs) == 0 {
		return
	}

	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("\nOutputs:")
	for _, k := range keys {
		fmt.Printf("  %s = %s\n", k, outputs[k])
	}
}
