// Command schemagen emits JSON schemas for the websocket wire messages,
// consumed by client tooling and protocol validation in CI.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"emberhold/server/internal/net/proto"
)

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "", "directory to write the JSON schemas")
	flag.Parse()

	if outDir == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}

	schemas := map[string]any{
		"client_message.json": new(proto.ClientMessage),
		"state_message.json":  new(proto.StateMessage),
		"join_response.json":  new(proto.JoinResponse),
		"command_ack.json":    new(proto.CommandAckMessage),
		"command_reject.json": new(proto.CommandRejectMessage),
		"heartbeat.json":      new(proto.HeartbeatMessage),
	}

	for name, target := range schemas {
		schema := reflector.Reflect(target)
		schema.Title = "Emberhold Wire Protocol"
		if err := writeSchema(filepath.Join(outDir, name), schema); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", name, err)
			os.Exit(1)
		}
	}
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
