package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpile-io/stockpile/internal/engine"
	"github.com/stockpile-io/stockpile/internal/ir"
)

func TestFormatStep(t *testing.T) {
	tests := []struct {
		name     string
		event    engine.StepEvent
		expected string
	}{
		{
			name: "created",
			event: engine.StepEvent{
				Key:    ir.Key{Kind: ir.KindStorage, Name: "uploads"},
				Name:   "inventory-uploads-20240101-abcd1234",
				Action: engine.ActionCreated,
			},
			expected: "+ storage  inventory-uploads-20240101-abcd1234",
		},
		{
			name: "reused gets default detail",
			event: engine.StepEvent{
				Key:    ir.Key{Kind: ir.KindTable, Name: "inventory"},
				Name:   "Inventory",
				Action: engine.ActionReused,
			},
			expected: "~ table    Inventory (already present)",
		},
		{
			name: "deleted",
			event: engine.StepEvent{
				Key:    ir.Key{Kind: ir.KindTopic, Name: "alerts"},
				Name:   "NoStock-20240101-abcd1234",
				Action: engine.ActionDeleted,
			},
			expected: "- topic    NoStock-20240101-abcd1234",
		},
		{
			name: "skipped with detail",
			event: engine.StepEvent{
				Key:    ir.Key{Kind: ir.KindTopic, Name: "alerts"},
				Name:   "NoStock-20240101-abcd1234",
				Action: engine.ActionSkipped,
				Detail: "no notification email configured",
			},
			expected: "! topic    NoStock-20240101-abcd1234 (no notification email configured)",
		},
		{
			name: "failed falls back to key name",
			event: engine.StepEvent{
				Key:    ir.Key{Kind: ir.KindGateway, Name: "api"},
				Action: engine.ActionFailed,
				Err:    errors.New("boom"),
			},
			expected: "! gateway  api (boom)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatStep(tt.event))
		})
	}
}

func TestColorize(t *testing.T) {
	noColor = false
	assert.Equal(t, "\033[31m", colorize("\033[31m"))

	noColor = true
	assert.Equal(t, "", colorize("\033[31m"))

	noColor = false
}

func TestStepSymbols(t *testing.T) {
	assert.Equal(t, "+", stepSymbol(engine.ActionCreated))
	assert.Equal(t, "~", stepSymbol(engine.ActionReused))
	assert.Equal(t, "-", stepSymbol(engine.ActionDeleted))
	assert.Equal(t, "!", stepSymbol(engine.ActionSkipped))
	assert.Equal(t, "!", stepSymbol(engine.ActionFailed))
	assert.Equal(t, " ", stepSymbol("unknown"))
}

func TestLoadConfigStateOverride(t *testing.T) {
	t.Setenv("STATE_PATH", "from-env.json")

	stateOverride = ""
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env.json", cfg.StatePath)

	stateOverride = "from-flag.json"
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-flag.json", cfg.StatePath)

	stateOverride = ""
}
