package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/ps3disc/pkg/app/detect"
)

var (
	detectInputDir string
	detectTemplate string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Identify the inserted or mounted PS3 disc",
	Long: `Scans mounted optical drives for PS3_DISC.SFB (or reads it from
--input-dir if given) and reports the disc's title, product code,
region, and version.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect()
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringVar(&detectInputDir, "input-dir", "", "mounted disc directory (skips drive enumeration)")
	detectCmd.Flags().StringVar(&detectTemplate, "template", "", "output-directory naming template")
}

func runDetect() error {
	cfg := loadConfig()
	ctx := newAppContext(cfg)
	eng := newEngine(ctx.Logger, cfg)
	defer eng.Close()

	template := detectTemplate
	if template == "" {
		template = cfg.OutputTemplate
	}

	resp, err := detect.Handle(ctx, eng, &detect.Request{InputDir: detectInputDir, Template: template})
	if err != nil {
		return err
	}

	fmt.Printf("Title:        %s\n", resp.Identity.Title)
	fmt.Printf("Product code: %s\n", resp.Identity.ProductCode)
	fmt.Printf("Region:       %s\n", resp.Identity.RegionCode)
	fmt.Printf("Disc version: %s\n", resp.Identity.DiscVersion)
	fmt.Printf("Output dir:   %s\n", resp.OutputDirName)
	return nil
}
