package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/ps3disc/pkg/app/detect"
	"github.com/deploymenttheory/ps3disc/pkg/app/findkey"
)

var (
	findkeyInputDir string
	findkeyCacheDir string
)

var findkeyCmd = &cobra.Command{
	Use:   "findkey",
	Short: "Locate the disc's decryption key in the key cache",
	Long: `Identifies the inserted disc, matches it against a raw optical
device, then tests every candidate key in --cache-dir against the
disc's detection probe and picks the one that decrypts it correctly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFindKey()
	},
}

func init() {
	rootCmd.AddCommand(findkeyCmd)
	findkeyCmd.Flags().StringVar(&findkeyInputDir, "input-dir", "", "mounted disc directory (skips drive enumeration)")
	findkeyCmd.Flags().StringVar(&findkeyCacheDir, "cache-dir", "", "key-cache directory (defaults from config)")
}

func runFindKey() error {
	cfg := loadConfig()
	ctx := newAppContext(cfg)
	eng := newEngine(ctx.Logger, cfg)
	defer eng.Close()

	if _, err := detect.Handle(ctx, eng, &detect.Request{InputDir: findkeyInputDir}); err != nil {
		return err
	}

	cacheDir := findkeyCacheDir
	if cacheDir == "" {
		cacheDir = cfg.CacheDir
	}

	resp, err := findkey.Handle(ctx, eng, &findkey.Request{CacheDir: cacheDir})
	if err != nil {
		return err
	}

	fmt.Printf("Key ID:       %s\n", resp.KeyID)
	fmt.Printf("Source:       %s (%s)\n", resp.SourceKind, resp.SourcePath)
	fmt.Printf("Game version: %s\n", resp.GameVersion)
	return nil
}
