package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/ttsd/pkg/enginedrv"
	"github.com/haivivi/ttsd/pkg/kv"
	"github.com/haivivi/ttsd/pkg/logging"
	"github.com/haivivi/ttsd/pkg/settings"
	"github.com/haivivi/ttsd/pkg/ttsdconfig"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the configured default engine's supported voices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listVoices(cmd)
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd)
}

func listVoices(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, err := ttsdconfig.Load([]string{configPath})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.SettingsDir})
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	store := settings.NewKVStore(db)
	defer store.Close()

	logger := logging.Nop()
	loadEngine := newEngineLoader(cfg, store, logger)
	plugin, err := loadEngine(ctx)
	if err != nil {
		return err
	}

	drv := enginedrv.New(logger)
	if err := drv.Load(ctx, plugin); err != nil {
		return err
	}
	defer drv.Unload()

	defaultLang, defaultVT := drv.DefaultVoice()
	fmt.Fprintf(cmd.OutOrStdout(), "default: %s/%s\n", defaultLang, defaultVT)
	drv.ForeachVoice(func(lang string, vt ttstype.VoiceType) bool {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s/%s\n", lang, vt)
		return true
	})
	return nil
}
