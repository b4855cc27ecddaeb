// configtest loads a config file, resolving includes, and prints the merged
// result along with the storage location it implies.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/guyfedwards/feedstash/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <config-file> [-debug]\n", os.Args[0])
		os.Exit(1)
	}

	debug := len(os.Args) > 2 && os.Args[2] == "-debug"

	runtime, err := config.New().WithConfigPath(os.Args[1]).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if debug {
		fmt.Fprintf(os.Stderr, "ConfigPath: %s\n", runtime.ConfigPath)
		fmt.Fprintf(os.Stderr, "ConfigDir: %s\n", runtime.ConfigDir)
		fmt.Fprintf(os.Stderr, "StoragePath: %s\n", runtime.StoragePath())
		fmt.Fprintf(os.Stderr, "FetchTimeout: %s\n", runtime.FetchTimeout())
	}

	output, err := yaml.Marshal(runtime.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling config to YAML: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(string(output))
}
