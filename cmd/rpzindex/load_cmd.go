/*
 * Copyright (c) DNS TAPIR
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <zone-name>",
	Short: "Ask a running rpzindex daemon to reload a zone from its configured file",
	Long: `load triggers the same Begin/Add/Ready reload bracket a DNS
NOTIFY would, against the zone's file as configured server-side; it
does not accept owner names directly, since the file on disk remains
the source of truth for a configured zone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp map[string]string
		if err := postJSON(apiBase, "/reload/"+args[0], &resp); err != nil {
			return err
		}
		fmt.Printf("%s (load %s)\n", resp["status"], resp["load_id"])
		return nil
	},
}
