// Command allocate decides which warehouses ship an order described in a
// YAML or JSON file, without a warehouse store.
//
// Exit status is 0 when the order can ship, 2 when it cannot and 1 on error.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wms-platform/allocation-service/internal/application"
	"github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/logging"
)

const (
	exitFulfilled     = 0
	exitError         = 1
	exitUnfulfillable = 2
)

type lineInput struct {
	SKU      string `yaml:"sku"`
	Quantity int64  `yaml:"quantity"`
}

type warehouseInput struct {
	WarehouseID string      `yaml:"warehouseId"`
	Stock       []lineInput `yaml:"stock"`
}

// allocationInput is the request file. JSON documents are valid YAML.
type allocationInput struct {
	AllocationID string           `yaml:"allocationId"`
	OrderID      string           `yaml:"orderId"`
	Lines        []lineInput      `yaml:"lines"`
	Warehouses   []warehouseInput `yaml:"warehouses"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("allocate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("f", "-", "Allocation request file (YAML or JSON), - for stdin")
	output := fs.String("o", "json", "Output format: json or yaml")
	logLevel := fs.String("log-level", "error", "Log level written to stderr")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	if *output != "json" && *output != "yaml" {
		fmt.Fprintf(stderr, "unknown output format %q\n", *output)
		return exitError
	}

	input, err := readInput(*file, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	logger := logging.New(&logging.Config{
		Level:       logging.ParseLevel(*logLevel),
		ServiceName: "allocate",
		Environment: "cli",
		Output:      stderr,
	})
	service := application.NewAllocationApplicationService(nil, nil, nil, nil, logger)

	result, err := service.Allocate(context.Background(), input.toCommand())
	if err != nil {
		reportError(stderr, err)
		return exitError
	}

	if err := writeResult(stdout, *output, result); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	if !result.Fulfillable {
		return exitUnfulfillable
	}
	return exitFulfilled
}

func readInput(path string, stdin io.Reader) (*allocationInput, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	var input allocationInput
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&input); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("request is empty")
		}
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}

	// The CLI has no store, so an omitted inventory is an empty one
	if input.Warehouses == nil {
		input.Warehouses = []warehouseInput{}
	}
	return &input, nil
}

func (in *allocationInput) toCommand() application.AllocateCommand {
	cmd := application.AllocateCommand{
		AllocationID: in.AllocationID,
		OrderID:      in.OrderID,
		Lines:        make([]application.OrderLine, len(in.Lines)),
		Warehouses:   make([]application.WarehouseSnapshot, len(in.Warehouses)),
	}
	for i, l := range in.Lines {
		cmd.Lines[i] = application.OrderLine{SKU: l.SKU, Quantity: l.Quantity}
	}
	for i, w := range in.Warehouses {
		stock := make([]application.StockLine, len(w.Stock))
		for j, l := range w.Stock {
			stock[j] = application.StockLine{SKU: l.SKU, Quantity: l.Quantity}
		}
		cmd.Warehouses[i] = application.WarehouseSnapshot{WarehouseID: w.WarehouseID, Stock: stock}
	}
	return cmd
}

func writeResult(w io.Writer, format string, result *application.AllocationResultDTO) error {
	if format == "yaml" {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return encoder.Close()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

func reportError(w io.Writer, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "error: %s: %s\n", appErr.Code, appErr.Message)
	fields := make([]string, 0, len(appErr.Details))
	for field := range appErr.Details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(w, "  %s: %s\n", field, appErr.Details[field])
	}
}
