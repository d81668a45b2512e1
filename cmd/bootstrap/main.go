package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mayur256/ai-assistant/internal/audit"
	"github.com/mayur256/ai-assistant/internal/capability"
	"github.com/mayur256/ai-assistant/internal/config"
)

// #region main
func main() {
	dir := envOr("ASSISTANT_HOME", ".")
	force := os.Getenv("ASSISTANT_FORCE") == "1"

	configPath := filepath.Join(dir, "assistant.yaml")
	capsPath := filepath.Join(dir, "capabilities.yaml")
	dbPath := filepath.Join(dir, "assistant_audit.db")

	fmt.Println("=== Assistant Bootstrap ===")
	fmt.Printf("  Dir: %s\n", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("create %s: %v", dir, err)
	}

	// Phase 1: configuration
	fmt.Println("\n--- Phase 1: Config ---")
	if exists(configPath) && !force {
		fmt.Printf("  %s exists, keeping it\n", configPath)
	} else {
		if err := config.WriteDefault(configPath); err != nil {
			log.Fatalf("write config: %v", err)
		}
		fmt.Printf("  Wrote %s\n", configPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config does not load: %v", err)
	}

	// Phase 2: capability table
	fmt.Println("\n--- Phase 2: Capabilities ---")
	if exists(capsPath) && !force {
		fmt.Printf("  %s exists, keeping it\n", capsPath)
	} else {
		if err := os.WriteFile(capsPath, capability.DefaultTable(), 0o644); err != nil {
			log.Fatalf("write capabilities: %v", err)
		}
		fmt.Printf("  Wrote %s\n", capsPath)
	}
	reg, err := capability.Load(capsPath)
	if err != nil {
		log.Fatalf("capability table does not load: %v", err)
	}
	fmt.Printf("  Policy: %s (%d capabilities)\n", reg.Policy(), reg.Len())

	// Phase 3: audit database
	fmt.Println("\n--- Phase 3: Audit Log ---")
	if cfg.Audit.Sink != "sqlite" {
		fmt.Printf("  Sink is %s, skipping SQLite setup\n", cfg.Audit.Sink)
	} else {
		sink, err := audit.OpenSQLite(dbPath)
		if err != nil {
			log.Fatalf("open audit db: %v", err)
		}
		records, err := sink.List(context.Background(), 0)
		if err == nil {
			err = audit.Verify(records)
		}
		sink.Close()
		if err != nil {
			log.Fatalf("audit log check: %v", err)
		}
		fmt.Printf("  %s ready, %d records, chain intact\n", dbPath, len(records))
	}

	fmt.Printf("\n=== Bootstrap Complete ===\n")
	fmt.Printf("  Set capabilities.path: %s and audit.path: %s in %s to use these files.\n", capsPath, dbPath, configPath)
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// #endregion helpers
