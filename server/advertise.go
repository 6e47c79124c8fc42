// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/brutella/dnssd"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
)

// serviceType is the mDNS service type ice9d advertises under.
const serviceType = "_ice9._tcp"

// refreshInterval is how often the advertised TXT record's system-load
// fields are recomputed.
const refreshInterval = 10 * time.Second

// Advertise registers the server over mDNS so operators on a LAN of
// otherwise-anonymous legacy hosts can discover it. It is a discovery
// convenience only: it never touches the connection table, framing, or
// teardown invariants, and is off unless the operator opts in with
// ice9d's -advertise flag. Advertise returns once registration succeeds;
// the refresh loop runs in the background for the life of the process.
func (s *Server) Advertise(instance, domain string, port int) error {
	if instance == "" {
		instance = defaultInstance()
	}

	text := map[string]string{
		"arch":  runtime.GOARCH,
		"os":    runtime.GOOS,
		"cores": strconv.Itoa(runtime.NumCPU()),
	}
	s.updateSysInfo(text)

	resp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("server: advertise: new responder: %w", err)
	}

	cfg := dnssd.Config{
		Name:   instance,
		Type:   serviceType,
		Domain: domain,
		Port:   port,
		Text:   text,
	}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("server: advertise: new service: %w", err)
	}

	handle, err := resp.Add(svc)
	if err != nil {
		return fmt.Errorf("server: advertise: add service: %w", err)
	}
	v("advertising %s.%s%s", instance, serviceType, domain)

	go func() {
		for range time.Tick(refreshInterval) {
			s.updateSysInfo(text)
			handle.UpdateText(text, resp)
		}
	}()

	return nil
}

func defaultInstance() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "ice9d"
	}
	return hostname + "-ice9d"
}

// updateSysInfo refreshes the load/tenant fields of an advertisement's TXT
// record. gopsutil is used in place of a platform-specific syscall so the
// same code runs on every target this daemon builds for.
func (s *Server) updateSysInfo(text map[string]string) {
	if vm, err := mem.VirtualMemory(); err == nil {
		text["mem_avail"] = strconv.FormatUint(vm.Available, 10)
		text["mem_total"] = strconv.FormatUint(vm.Total, 10)
	}
	if avg, err := load.Avg(); err == nil {
		text["load1"] = strconv.FormatFloat(avg.Load1, 'f', 2, 64)
		text["load5"] = strconv.FormatFloat(avg.Load5, 'f', 2, 64)
		text["load15"] = strconv.FormatFloat(avg.Load15, 'f', 2, 64)
	}
	text["tenants"] = strconv.Itoa(s.table.Len())
}
