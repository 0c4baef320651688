package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cgfuse/cgfuse/pkg/fusion"
)

// cleanCommand creates the clean command. It removes fused files written by
// earlier runs, recognized by their name prefix; files forged under a
// custom --fusion-name are left alone.
func (c *CLI) cleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove fused files written by earlier runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest := c.manifestPath
			if manifest == "" {
				manifest = "Cargo.toml"
			}
			binDir := filepath.Join(filepath.Dir(manifest), "src", "bin")

			fused, err := fusedBinaries(binDir)
			if err != nil {
				return err
			}
			if len(fused) == 0 {
				printInfo("No fused files in %s", binDir)
				return nil
			}

			if !c.force {
				if !isInteractive() {
					return fmt.Errorf("%d fused file(s) in %s (pass --force to remove)", len(fused), binDir)
				}
				for _, path := range fused {
					printFile(path)
				}
				if !promptYesNo(fmt.Sprintf("Remove %d fused file(s)?", len(fused))) {
					return nil
				}
			}

			count := 0
			for _, path := range fused {
				if err := os.Remove(path); err != nil {
					printError("%s: %v", path, err)
					continue
				}
				count++
			}
			printSuccess("Removed %d fused file(s)", count)
			printDetail("Directory: %s", binDir)
			return nil
		},
	}
}

// fusedBinaries lists the files in dir carrying the fusion prefix, sorted.
func fusedBinaries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var fused []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, fusion.FusionPrefix) && strings.HasSuffix(name, ".rs") {
			fused = append(fused, filepath.Join(dir, name))
		}
	}
	sort.Strings(fused)
	return fused, nil
}
