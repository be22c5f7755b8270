//go:build js && wasm

// Command wasm exposes the lawnmower engine to the browser via WebAssembly.
// After loading, it registers two global JavaScript functions:
//
//	runSimulation(jsonString) -> jsonString
//	compareMethods(jsonString) -> jsonString
//
// Both take a JSON-encoded SimulationInput. runSimulation returns a
// SimulationLog and compareMethods a Comparison, matching the CLI output.
package main

import (
	"syscall/js"

	"github.com/cxd309/lawnmower-engine/internal/engine"
)

func main() {
	js.Global().Set("runSimulation", js.FuncOf(jsonFunc(engine.RunJSON)))
	js.Global().Set("compareMethods", js.FuncOf(jsonFunc(engine.CompareJSON)))
	select {} // keep the WASM module alive until the page is closed
}

func jsonFunc(run func(string) (string, error)) func(js.Value, []js.Value) any {
	return func(_ js.Value, args []js.Value) any {
		if len(args) < 1 {
			return map[string]any{"error": "no input provided"}
		}

		result, err := run(args[0].String())
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return result
	}
}
