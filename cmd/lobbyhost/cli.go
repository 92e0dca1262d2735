package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OCAP2/lobbyhost/internal/config"
	gormstorage "github.com/OCAP2/lobbyhost/internal/storage/gorm"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:          AppName,
	Short:        "Host a game lobby and keep clients and the masterserver in step",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.Load(configDir); err != nil {
			Logger.Warn("Failed to load config, using defaults!", "error", err)
		} else {
			Logger.Info("Loaded config")
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the lobby and accept clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(viper.AllSettings())
	},
}

var launchesLimit int

var launchesCmd = &cobra.Command{
	Use:   "launches",
	Short: "List launched games recorded by a database storage backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		initLogging()
		backend, err := initStorage()
		if err != nil {
			return err
		}
		defer backend.Close()

		gb, ok := backend.(*gormstorage.Backend)
		if !ok {
			return fmt.Errorf("storage type %q keeps no launch history", config.GetStorageConfig().Type)
		}
		recs, err := gb.Launches(context.Background(), launchesLimit)
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s/%s\t%d seats\n",
				r.LaunchedAt.Format("2006-01-02 15:04:05"), r.GameUUID, r.GameName, r.Map, r.Techtree, r.Seats)
		}
		return nil
	},
}

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "List the maps, tilesets, techtrees and scenarios found in the data paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := initAssets()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range idx.Maps() {
			fmt.Fprintf(out, "map\t%s\t%d players\n", m.Name, m.Players)
		}
		for _, t := range idx.Tilesets() {
			fmt.Fprintf(out, "tileset\t%s\n", t)
		}
		for _, t := range idx.Techtrees() {
			factions, _ := idx.Factions(t)
			fmt.Fprintf(out, "techtree\t%s\t%v\n", t, factions)
		}
		for _, name := range idx.Scenarios() {
			info, err := idx.Scenario(name)
			if err != nil {
				fmt.Fprintf(out, "scenario\t%s\t%v\n", name, err)
				continue
			}
			fmt.Fprintf(out, "scenario\t%s\t%s\n", name, info.Map)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding "+config.FileName)
	launchesCmd.Flags().IntVar(&launchesLimit, "limit", 20, "maximum number of launches to list")
	rootCmd.AddCommand(serveCmd, configCmd, launchesCmd, assetsCmd, versionCmd)
}
