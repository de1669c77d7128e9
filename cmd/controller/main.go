package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/codec"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/core"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/provenance"
	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/risk"
)

var combos = []string{"retrieve-heavy", "trace-heavy", "balanced"}

// #region main
func main() {
	dbPath := envOr("MEMORY_DB", "memory_telemetry.db")
	grpcAddr := envOr("CODEC_ADDR", "localhost:50051")

	store, err := provenance.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open telemetry store: %v", err)
	}
	defer store.Close()
	sink := provenance.NewAsyncSink(store, 1024)
	defer sink.Close()

	client, err := codec.New(grpcAddr)
	if err != nil {
		log.Fatalf("failed to connect to codec service at %s: %v", grpcAddr, err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = client.Healthy(ctx)
	cancel()
	if err != nil {
		log.Fatalf("codec service not healthy: %v", err)
	}

	fmt.Println("Memory controller ready.")
	fmt.Printf("  DB: %s | Codec: %s\n", dbPath, grpcAddr)
	fmt.Println("Type a prompt (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)

	// The core is built lazily: the embedding service decides the
	// observation dimensionality on the first turn.
	var c *core.Core
	extractor := risk.New(risk.DefaultConfig())
	turnRisk := risk.Input{Entropy: -1}

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if prompt == "quit" || prompt == "exit" {
			break
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		observed, err := client.Embed(ctx, prompt)
		cancel()
		if err != nil {
			log.Printf("embed error: %v", err)
			continue
		}

		if c == nil {
			c, err = buildCore(len(observed), sink)
			if err != nil {
				log.Fatalf("build core: %v", err)
			}
		}

		result, err := c.Step(core.StepInput{
			Observed:   observed,
			Risk:       extractor.Extract(turnRisk),
			Signature:  c.Regime().Level.String(),
			Candidates: combos,
		})
		if err != nil {
			log.Printf("step error: %v", err)
			continue
		}

		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		generated, err := client.Generate(ctx, prompt, nil)
		cancel()
		if err != nil {
			log.Printf("generate error: %v", err)
			continue
		}

		fmt.Printf("\n%s\n\n", generated.Text)
		fmt.Printf("[%s] regime=%s phase=%s combo=%s delta=%.4f retrieved=%d entropy=%.4f\n",
			result.StepID, result.Regime.Level, result.Phase, result.Combo,
			result.DeltaNorm, len(result.Retrieved), generated.Entropy)

		// This turn's signals become next turn's risk.
		turnRisk = risk.Input{Entropy: generated.Entropy}
		for _, r := range result.Retrieved {
			turnRisk.RetrievalScores = append(turnRisk.RetrievalScores, r.Score)
		}
	}
}

// #endregion main

// #region helpers
func buildCore(dim int, sink *provenance.AsyncSink) (*core.Core, error) {
	config := core.DefaultConfig()
	config.Dim = dim
	config.Predictor.Dim = dim
	config.Trace.Dim = dim
	config.Lattice.Dim = dim
	return core.New(config, sink)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
