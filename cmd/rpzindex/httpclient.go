/*
 * Copyright (c) DNS TAPIR
 */

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// getJSON is the thin HTTP client helper the query/status subcommands
// use to talk to a running "rpzindex serve" instance. The teacher's own
// client stack (tapir.ApiClient) carries mTLS plumbing this repo has no
// use for (see DESIGN.md); plain net/http is enough for a local
// query/status tool.
func getJSON(base, path string, query url.Values, out interface{}) error {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("GET %s: %s: %s", u, resp.Status, apiErr.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func postJSON(base, path string, out interface{}) error {
	u := base + path
	resp, err := http.Post(u, "application/json", nil)
	if err != nil {
		return fmt.Errorf("POST %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("POST %s: %s: %s", u, resp.Status, apiErr.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
