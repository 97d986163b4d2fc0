// Package snapshot defines the per-cycle device facts handed to the
// reconciliation pipeline by the SNMP poller or the ingest API.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingIdentity reports a snapshot without the minimum identity block.
var ErrMissingIdentity = errors.New("snapshot missing device identity")

// Snapshot is one polling cycle's complete set of facts for a single device.
// It is built once per poll, consumed by the pipeline, then discarded.
type Snapshot struct {
	Misc   Misc              `json:"misc" yaml:"misc"`
	System System            `json:"system" yaml:"system"`
	Layer1 map[int]Interface `json:"layer1" yaml:"layer1"`
	Layer3 *Layer3           `json:"layer3,omitempty" yaml:"layer3,omitempty"`
}

// Misc carries poll metadata.
type Misc struct {
	Host      string `json:"host" yaml:"host"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

// System carries the SNMPv2-MIB system group.
type System struct {
	SysName        string `json:"sys_name" yaml:"sys_name"`
	SysDescription string `json:"sys_description" yaml:"sys_description"`
	SysObjectID    string `json:"sys_objectid" yaml:"sys_objectid"`
	SysUptime      int64  `json:"sys_uptime" yaml:"sys_uptime"`
}

// Interface is one row of the snapshot's interface collection, keyed in
// Layer1 by ifIndex.
type Interface struct {
	IfAdminStatus int    `json:"if_admin_status" yaml:"if_admin_status"`
	IfOperStatus  int    `json:"if_oper_status" yaml:"if_oper_status"`
	IfSpeed       uint64 `json:"if_speed" yaml:"if_speed"`
	IfAlias       string `json:"if_alias" yaml:"if_alias"`
	IfDescr       string `json:"if_descr" yaml:"if_descr"`
	Duplex        int    `json:"duplex" yaml:"duplex"`
	Ethernet      bool   `json:"ethernet" yaml:"ethernet"`
	NativeVlan    int    `json:"native_vlan" yaml:"native_vlan"`
	Trunk         bool   `json:"trunk" yaml:"trunk"`

	Vlans []int    `json:"vlans,omitempty" yaml:"vlans,omitempty"`
	Macs  []string `json:"macs,omitempty" yaml:"macs,omitempty"`

	CdpCacheDeviceID     string `json:"cdp_cache_device_id,omitempty" yaml:"cdp_cache_device_id,omitempty"`
	CdpCacheDevicePort   string `json:"cdp_cache_device_port,omitempty" yaml:"cdp_cache_device_port,omitempty"`
	CdpCachePlatform     string `json:"cdp_cache_platform,omitempty" yaml:"cdp_cache_platform,omitempty"`
	LldpRemPortDesc      string `json:"lldp_rem_port_desc,omitempty" yaml:"lldp_rem_port_desc,omitempty"`
	LldpRemSysCapEnabled string `json:"lldp_rem_sys_cap_enabled,omitempty" yaml:"lldp_rem_sys_cap_enabled,omitempty"`
	LldpRemSysDesc       string `json:"lldp_rem_sys_desc,omitempty" yaml:"lldp_rem_sys_desc,omitempty"`
	LldpRemSysName       string `json:"lldp_rem_sys_name,omitempty" yaml:"lldp_rem_sys_name,omitempty"`
}

// Layer3 holds the optional neighbor tables, each mapping IP to MAC.
type Layer3 struct {
	IPv4 map[string]string `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6 map[string]string `json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
}

// Validate checks the minimum identity fields the pipeline needs before any
// write happens.
func (s *Snapshot) Validate() error {
	if s == nil {
		return ErrMissingIdentity
	}
	if s.Misc.Host == "" {
		return fmt.Errorf("%w: no hostname", ErrMissingIdentity)
	}
	if s.Misc.Timestamp <= 0 {
		return fmt.Errorf("%w: no poll timestamp", ErrMissingIdentity)
	}
	return nil
}

// DumpFunc is an optional diagnostic side effect invoked with the raw
// snapshot before processing begins.
type DumpFunc func(s *Snapshot) error

// FileDumper writes snapshots as <host>.yaml under dir. Hostnames that are
// not a plain file name (ingest snapshots are untrusted) are rejected so the
// write cannot escape dir.
func FileDumper(dir string) DumpFunc {
	return func(s *Snapshot) error {
		host := s.Misc.Host
		if host == "" || host == "." || host == ".." || strings.ContainsAny(host, `/\`) {
			return fmt.Errorf("snapshot host %q is not a safe file name", host)
		}
		out, err := yaml.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal snapshot for %q: %w", host, err)
		}
		path := filepath.Join(dir, host+".yaml")
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("dump snapshot to %q: %w", path, err)
		}
		return nil
	}
}
