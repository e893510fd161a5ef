package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// outputJSON outputs data as pretty-printed JSON
func outputJSON(v interface{}) {
	if err := writeJSON(os.Stdout, v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// exitCode is what main exits with once cobra has run the post-run hooks.
var exitCode int

// setExitCode records a non-zero code; the first one sticks.
func setExitCode(code int) {
	if code != 0 && exitCode == 0 {
		exitCode = code
	}
}
