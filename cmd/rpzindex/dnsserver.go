/*
 * Copyright (c) DNS TAPIR
 */

package main

import (
	"github.com/miekg/dns"

	"github.com/dnstapir/rpzindex/internal/config"
)

// serveNotify runs a DNS server on addr (UDP and TCP) whose only job is
// to react to a NOTIFY for one of the configured zone origins by
// reloading that zone's file. Grounded on dnshandler.go's DnsEngine:
// one dns.HandleFunc per listener, dispatching on r.Opcode, and a
// dns.Server per (address, net) pair run in its own goroutine.
func (d *daemon) serveNotify(addr string) error {
	mux := dns.NewServeMux()
	mux.HandleFunc(".", d.handleNotify)

	errCh := make(chan error, 2)
	for _, net := range []string{"udp", "tcp"} {
		srv := &dns.Server{Addr: addr, Net: net, Handler: mux}
		go func(s *dns.Server) { errCh <- s.ListenAndServe() }(srv)
	}
	return <-errCh
}

func (d *daemon) handleNotify(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)

	if r.Opcode != dns.OpcodeNotify || len(r.Question) == 0 {
		m.Rcode = dns.RcodeRefused
		w.WriteMsg(m)
		return
	}

	origin := dns.Fqdn(r.Question[0].Name)
	name, z, ok := d.zoneByOrigin(origin)
	if !ok {
		d.log.Printf("rpzindex: notify for unknown zone %q", origin)
		m.Rcode = dns.RcodeRefused
		w.WriteMsg(m)
		return
	}

	w.WriteMsg(m) // ack the NOTIFY before doing the (possibly slow) reload, per RFC 1996

	d.log.Printf("rpzindex: notify for zone %q, reloading", origin)
	id, err := d.loadZoneFile(name, z)
	if err != nil {
		d.log.Printf("rpzindex: load %s: reload of zone %q failed: %v", id, origin, err)
		return
	}
	d.log.Printf("rpzindex: load %s: reload of zone %q complete", id, origin)
}

func (d *daemon) zoneByOrigin(origin string) (string, config.ZoneConf, bool) {
	for name, z := range d.cfg.Zones {
		if dns.Fqdn(z.Origin) == origin {
			return name, z, true
		}
	}
	return "", config.ZoneConf{}, false
}
