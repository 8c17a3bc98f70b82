package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/gate"
	"github.com/sibyllinesoft/valknut/internal/pack"
)

func TestJSONFormatterProducesValidJSON(t *testing.T) {
	report := Report{
		Packs: []pack.Pack{{Kind: "ComplexityHotspot", PrimaryEntity: 1, Priority: 0.5}},
		Gate:  gate.Report{Passed: true},
	}
	var buf bytes.Buffer
	require.NoError(t, JSONFormatter{}.Format(&buf, report))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.Packs[0].PrimaryEntity, decoded.Packs[0].PrimaryEntity)
	assert.True(t, decoded.Gate.Passed)
}
