/*
 * Copyright (c) DNS TAPIR
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dnstapir/rpzindex/rpz"
)

var (
	decodeOrigin   string
	decodeSelfname string
)

// decodeCmd runs rpz.DecodeCNAME locally: it needs only a zone's
// conventional subnames and origin, none of which require a loaded
// index, so this subcommand never talks to a running daemon.
var decodeCmd = &cobra.Command{
	Use:   "decode-cname <target>",
	Short: "Decode a CNAME rdata target against a zone's policy sentinels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if decodeOrigin == "" {
			return fmt.Errorf("--origin is required")
		}
		zone := &rpz.ZoneRecord{
			Origin:      decodeOrigin,
			PassthruSub: "rpz-passthru",
			DropSub:     "rpz-drop",
			TCPOnlySub:  "rpz-tcp-only",
		}
		policy := rpz.DecodeCNAME(zone, args[0], decodeSelfname)
		fmt.Println(policy.String())
		return nil
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeOrigin, "origin", "", "zone origin (required)")
	decodeCmd.Flags().StringVar(&decodeSelfname, "selfname", "", "the matched trigger's own owner name, for the obsolete CNAME-to-self PASSTHRU form")
}
