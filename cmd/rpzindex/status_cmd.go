/*
 * Copyright (c) DNS TAPIR
 */

package main

import (
	"fmt"

	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List the zones a running rpzindex daemon has loaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp statusResponse
		if err := getJSON(apiBase, "/status", nil, &resp); err != nil {
			return err
		}
		rows := []string{"ZONE|ORIGIN|POLICY"}
		for _, z := range resp.Zones {
			rows = append(rows, fmt.Sprintf("%d|%s|%s", z.Num, z.Origin, z.Policy))
		}
		fmt.Println(columnize.SimpleFormat(rows))
		return nil
	},
}
