package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nrgeol/schedcore/hack/e2e_driver/pkg/driver"
)

func main() {
	scenarioPath := pflag.String("scenario", "", "Path to a scenario YAML file")
	logDir := pflag.String("log-dir", "./logs", "Directory to store run reports")
	pflag.Parse()

	if *scenarioPath == "" {
		log.Fatal("scenario file is required; use --scenario to specify one")
	}

	absScenarioPath, err := filepath.Abs(*scenarioPath)
	if err != nil {
		log.Fatalf("failed to resolve absolute path for scenario file: %v", err)
	}
	if _, err := os.Stat(absScenarioPath); os.IsNotExist(err) {
		log.Fatalf("scenario file does not exist: %s", absScenarioPath)
	}

	absLogDir, err := filepath.Abs(*logDir)
	if err != nil {
		log.Fatalf("failed to resolve absolute path for log directory: %v", err)
	}

	drv, err := driver.NewDriver(driver.DriverConfig{
		ScenarioPath: absScenarioPath,
		LogDir:       absLogDir,
	})
	if err != nil {
		log.Fatalf("failed to create driver: %v", err)
	}

	ctx := context.Background()
	if err := drv.Run(ctx); err != nil {
		errorMsg := fmt.Sprintf("scenario run failed: %v", err)
		for _, line := range strings.Split(errorMsg, "\n") {
			log.Println(line)
		}
		os.Exit(1)
	}

	log.Println("scenario completed successfully")
}
