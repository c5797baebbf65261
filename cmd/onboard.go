package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dayuer/kaapav-go/internal/config"
	"github.com/dayuer/kaapav-go/internal/menu"
	"github.com/dayuer/kaapav-go/internal/utils"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a default config and an editable menu catalog",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	catalogPath := filepath.Join(utils.GetDataPath(), "menus.yaml")

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
	} else {
		cfg := config.DefaultConfig()
		cfg.Menus.CatalogPath = catalogPath
		if err := config.Save(cfg, path); err != nil {
			return errors.Wrap(err, "creating config")
		}
		fmt.Printf("✓ Created config at %s\n", path)
	}

	if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
		data, err := menu.Default().Marshal()
		if err != nil {
			return errors.Wrap(err, "rendering menu catalog")
		}
		if err := os.WriteFile(catalogPath, data, 0644); err != nil {
			return errors.Wrap(err, "writing menu catalog")
		}
		fmt.Printf("✓ Created menu catalog at %s\n", catalogPath)
	}

	fmt.Println("\n💎 kaapav is ready!")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set WHATSAPP_ACCESS_TOKEN, WHATSAPP_PHONE_NUMBER_ID and VERIFY_TOKEN (or edit the config)")
	fmt.Println("  2. Try the menus offline: kaapav simulate")
	fmt.Println("  3. Run: kaapav server")
	return nil
}
