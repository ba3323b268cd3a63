// Package main is the gramconv entry point: a one-shot batch tool that
// converts a T5-family grammar-correction checkpoint into ONNX graph
// artifacts. Configuration comes from the environment (GRAMCONV_MODEL,
// GRAMCONV_REVISION, GRAMCONV_OUTPUT_DIR); there are no flags.
package main

import (
	"fmt"
	"os"

	"github.com/born-ml/gramconv/internal/logger"
	"github.com/born-ml/gramconv/internal/pipeline"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("gramconv %s\n", version)
		return
	}

	log := logger.Default()
	cfg := pipeline.ConfigFromEnv()

	if err := pipeline.Run(cfg, log); err != nil {
		log.Error("conversion failed", "error", err)
		os.Exit(1)
	}
}
