/*
 * Copyright (c) DNS TAPIR
 */

package main

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dnstapir/rpzindex/rpz"
)

// router builds the HTTP API, grounded on dnstapir-pop/apihandler.go's
// SetupRouter: a gorilla/mux router, one handler per command, JSON in
// and out.
func (d *daemon) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/find/ip", d.handleFindIP).Methods("GET")
	r.HandleFunc("/find/name", d.handleFindName).Methods("GET")
	r.HandleFunc("/decode", d.handleDecode).Methods("GET")
	r.HandleFunc("/status", d.handleStatus).Methods("GET")
	r.HandleFunc("/reload/{zone}", d.handleReload).Methods("POST")
	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": msg})
}

func parseZBits(s string) rpz.ZBits {
	if s == "" {
		return rpz.AllZBits
	}
	var zbits rpz.ZBits
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		zbits.Set(rpz.ZBit(n))
	}
	return zbits
}

func parseCategory(s string) rpz.Category {
	if s == "ns" {
		return rpz.CategoryNS
	}
	return rpz.CategoryDirect
}

// findIPResponse is the wire shape of a /find/ip result.
type findIPResponse struct {
	Matched   bool   `json:"matched"`
	Zone      int    `json:"zone,omitempty"`
	OwnerName string `json:"owner_name,omitempty"`
	Prefix    int    `json:"prefix,omitempty"`
}

func (d *daemon) handleFindIP(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	addr := q.Get("addr")
	ip := net.ParseIP(addr)
	if ip == nil {
		writeError(w, http.StatusBadRequest, "invalid or missing addr")
		return
	}
	prefix := 32
	if ip.To4() == nil {
		prefix = 128
	}
	key, err := rpz.FromNetIP(ip, prefix)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cat := parseCategory(q.Get("cat"))
	zbits := parseZBits(q.Get("zones"))

	match, ok := d.idx.FindIP(cat, zbits, key)
	if !ok {
		writeJSON(w, findIPResponse{Matched: false})
		return
	}
	writeJSON(w, findIPResponse{Matched: true, Zone: match.Zone, OwnerName: match.OwnerName, Prefix: match.Prefix})
}

// findNameResponse is the wire shape of a /find/name result.
type findNameResponse struct {
	Zones []int `json:"zones"`
}

func (d *daemon) handleFindName(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	name := q.Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name")
		return
	}
	cat := parseCategory(q.Get("cat"))
	zbits := parseZBits(q.Get("zones"))

	found := d.idx.FindName(cat, zbits, name)
	var zones []int
	for z := 0; z < rpz.Zmax; z++ {
		if found.Test(z) {
			zones = append(zones, z)
		}
	}
	writeJSON(w, findNameResponse{Zones: zones})
}

type decodeResponse struct {
	Policy string `json:"policy"`
}

func (d *daemon) handleDecode(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	zoneStr := q.Get("zone")
	target := q.Get("target")
	selfname := q.Get("selfname")
	if zoneStr == "" || target == "" {
		writeError(w, http.StatusBadRequest, "missing zone or target")
		return
	}
	num, err := strconv.Atoi(zoneStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid zone")
		return
	}
	zone, ok := d.zoneRecord(num)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown zone")
		return
	}
	policy := rpz.DecodeCNAME(zone, target, selfname)
	writeJSON(w, decodeResponse{Policy: policy.String()})
}

type statusZone struct {
	Num    int    `json:"num"`
	Origin string `json:"origin"`
	Policy string `json:"policy"`
}

type statusResponse struct {
	Zones []statusZone `json:"zones"`
}

func (d *daemon) handleStatus(w http.ResponseWriter, req *http.Request) {
	var resp statusResponse
	for name, z := range d.cfg.Zones {
		_ = name
		resp.Zones = append(resp.Zones, statusZone{Num: z.Ordinal, Origin: z.Origin, Policy: z.Policy})
	}
	writeJSON(w, resp)
}

func (d *daemon) handleReload(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	name := vars["zone"]
	z, ok := d.cfg.ZoneByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown zone")
		return
	}
	id, err := d.loadZoneFile(name, z)
	w.Header().Set("X-Load-Id", id.String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "reloaded", "load_id": id.String()})
}

// zoneRecord is a convenience wrapper the decode handler uses to fetch
// a *rpz.ZoneRecord without exposing the registry outside the rpz
// package; RegisterZone is idempotent so this never creates a
// duplicate.
func (d *daemon) zoneRecord(num int) (*rpz.ZoneRecord, bool) {
	for _, z := range d.cfg.Zones {
		if z.Ordinal == num {
			return d.idx.RegisterZone(num, z.Origin), true
		}
	}
	return nil, false
}
