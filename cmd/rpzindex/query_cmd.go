/*
 * Copyright (c) DNS TAPIR
 */

package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a running rpzindex daemon's trigger index",
}

var queryIPCmd = &cobra.Command{
	Use:   "ip <address>",
	Short: "Find the highest-priority trigger matching an IP address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp findIPResponse
		q := url.Values{"addr": {args[0]}, "cat": {queryCat}, "zones": {queryZones}}
		if err := getJSON(apiBase, "/find/ip", q, &resp); err != nil {
			return err
		}
		if !resp.Matched {
			fmt.Println("no match")
			return nil
		}
		fmt.Printf("zone=%d owner=%s prefix=%d\n", resp.Zone, resp.OwnerName, resp.Prefix)
		return nil
	},
}

var queryNameCmd = &cobra.Command{
	Use:   "name <domain>",
	Short: "Find the zones with a trigger matching a domain name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp findNameResponse
		q := url.Values{"name": {args[0]}, "cat": {queryCat}, "zones": {queryZones}}
		if err := getJSON(apiBase, "/find/name", q, &resp); err != nil {
			return err
		}
		if len(resp.Zones) == 0 {
			fmt.Println("no match")
			return nil
		}
		fmt.Printf("zones=%v\n", resp.Zones)
		return nil
	},
}

var (
	queryCat   string
	queryZones string
)

func init() {
	queryCmd.PersistentFlags().StringVar(&queryCat, "cat", "d", `trigger category: "d" (direct) or "ns"`)
	queryCmd.PersistentFlags().StringVar(&queryZones, "zones", "", "comma-separated zone ordinals to search (default: all)")
	queryCmd.AddCommand(queryIPCmd)
	queryCmd.AddCommand(queryNameCmd)
}
