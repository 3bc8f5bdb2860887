/*
 * Copyright (c) DNS TAPIR
 */

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dnstapir/rpzindex/internal/config"
)

var (
	cfgFile string
	verbose bool
	debug   bool
	apiBase string

	globalViper = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "rpzindex",
	Short: "In-memory trigger index for DNS Response Policy Zones",
	Long: `rpzindex maintains the dual CIDR/name trigger index a recursive
resolver consults on every answer, and exposes it over a small HTTP API.

Run "rpzindex serve" to start the daemon; the other subcommands are thin
clients against a running daemon, except "decode-cname" which is a pure
local computation.`,
}

// Execute runs the root command; called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/rpzindex/rpzindex.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", "http://127.0.0.1:8080", "rpzindex API base URL, for the client subcommands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(loadCmd)
}

func loadConfigOrDie() *config.Config {
	globalViper.SetConfigFile(cfgFile)
	cfg, err := config.Load(globalViper, cfgFile)
	if err != nil {
		log.Fatalf("rpzindex: %v", err)
	}
	return cfg
}
