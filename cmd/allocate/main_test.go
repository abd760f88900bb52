package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/allocation-service/internal/application"
)

const splitRequestYAML = `
orderId: ORD-1
lines:
  - sku: apple
    quantity: 10
warehouses:
  - warehouseId: owd
    stock:
      - sku: apple
        quantity: 5
  - warehouseId: dm
    stock:
      - sku: apple
        quantity: 5
`

func runWith(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_YAMLInputJSONOutput(t *testing.T) {
	code, stdout, stderr := runWith(t, splitRequestYAML)
	require.Equal(t, exitFulfilled, code, stderr)

	var result application.AllocationResultDTO
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.True(t, result.Fulfillable)
	assert.Equal(t, "split", result.Strategy)
	assert.Equal(t, "ORD-1", result.OrderID)
	require.Len(t, result.Shipments, 2)
	assert.Equal(t, "owd", result.Shipments[0].WarehouseID)
	assert.Equal(t, "dm", result.Shipments[1].WarehouseID)
}

func TestRun_JSONInputYAMLOutput(t *testing.T) {
	input := `{"lines":[{"sku":"apple","quantity":1}],"warehouses":[{"warehouseId":"owd","stock":[{"sku":"apple","quantity":1}]}]}`

	code, stdout, stderr := runWith(t, input, "-o", "yaml")
	require.Equal(t, exitFulfilled, code, stderr)

	var result application.AllocationResultDTO
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "single_warehouse", result.Strategy)
	require.Len(t, result.Shipments, 1)
	assert.Equal(t, []application.LineDTO{{SKU: "apple", Quantity: 1}}, result.Shipments[0].Items)
}

func TestRun_Unfulfillable(t *testing.T) {
	input := `
lines:
  - sku: apple
    quantity: 3
warehouses:
  - warehouseId: owd
    stock:
      - sku: apple
        quantity: 1
`
	code, stdout, _ := runWith(t, input)
	assert.Equal(t, exitUnfulfillable, code)

	var result application.AllocationResultDTO
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.False(t, result.Fulfillable)
	assert.Empty(t, result.Shipments)
	assert.Equal(t, []application.LineDTO{{SKU: "apple", Quantity: 2}}, result.Shortfall)
}

func TestRun_OmittedWarehousesIsEmptyInventory(t *testing.T) {
	code, _, _ := runWith(t, "lines:\n  - sku: apple\n    quantity: 1\n")
	assert.Equal(t, exitUnfulfillable, code)
}

func TestRun_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.yaml")
	require.NoError(t, os.WriteFile(path, []byte(splitRequestYAML), 0o600))

	code, _, stderr := runWith(t, "", "-f", path)
	assert.Equal(t, exitFulfilled, code, stderr)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name       string
		stdin      string
		args       []string
		wantStderr string
	}{
		{name: "validation", stdin: "lines:\n  - sku: apple\n    quantity: -1\n", wantStderr: "VALIDATION_ERROR"},
		{name: "duplicate warehouse", stdin: "lines: []\nwarehouses:\n  - warehouseId: owd\n  - warehouseId: owd\n", wantStderr: "VALIDATION_ERROR"},
		{name: "unknown field", stdin: "lines: []\nstore: mongo\n", wantStderr: "failed to parse request"},
		{name: "empty input", stdin: "", wantStderr: "request is empty"},
		{name: "bad output format", stdin: splitRequestYAML, args: []string{"-o", "xml"}, wantStderr: "unknown output format"},
		{name: "missing file", args: []string{"-f", "/nonexistent/request.yaml"}, wantStderr: "failed to open request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runWith(t, tt.stdin, tt.args...)
			assert.Equal(t, exitError, code)
			assert.Contains(t, stderr, tt.wantStderr)
		})
	}
}
