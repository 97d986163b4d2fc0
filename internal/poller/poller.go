// Package poller queries devices over SNMP and assembles the per-cycle
// snapshots consumed by the reconciliation pipeline.
package poller

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"topomap/internal/oid"
	"topomap/internal/snapshot"
)

// Poller builds device snapshots over SNMP v2c.
type Poller struct {
	clock   clockwork.Clock
	log     zerolog.Logger
	timeout time.Duration
}

// New builds a Poller. A zero timeout uses the gosnmp default.
func New(clock clockwork.Clock, log zerolog.Logger, timeout time.Duration) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout == 0 {
		timeout = gosnmp.Default.Timeout
	}
	return &Poller{clock: clock, log: log, timeout: timeout}
}

// Poll queries one target and returns its snapshot. Missing optional tables
// (bridge FDB, neighbor caches, LLDP) degrade to empty sections; only the
// system group and interface table are required.
func (p *Poller) Poll(ctx context.Context, target Target) (*snapshot.Snapshot, error) {
	g := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    target.Host,
		Port:      target.Port,
		Community: target.Community,
		Version:   gosnmp.Version2c,
		Timeout:   p.timeout,
		Retries:   1,
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target.Host, err)
	}
	defer g.Conn.Close()

	snap := &snapshot.Snapshot{
		Misc: snapshot.Misc{
			Host:      target.Host,
			Timestamp: p.clock.Now().Unix(),
		},
		Layer1: make(map[int]snapshot.Interface),
	}

	if err := p.pollSystem(g, snap); err != nil {
		return nil, err
	}
	if err := p.pollInterfaces(g, snap); err != nil {
		return nil, err
	}
	p.pollBridge(g, snap, target.Host)
	p.pollNeighbors(g, snap, target.Host)
	p.pollLldp(g, snap, target.Host)

	return snap, nil
}

func (p *Poller) pollSystem(g *gosnmp.GoSNMP, snap *snapshot.Snapshot) error {
	result, err := g.Get([]string{oid.SysName, oid.SysDescr, oid.SysObjectID, oid.SysUpTime})
	if err != nil {
		return fmt.Errorf("get system group from %s: %w", snap.Misc.Host, err)
	}
	for _, pdu := range result.Variables {
		switch strings.TrimPrefix(pdu.Name, ".") {
		case oid.SysName:
			snap.System.SysName = pduString(&pdu)
		case oid.SysDescr:
			snap.System.SysDescription = pduString(&pdu)
		case oid.SysObjectID:
			snap.System.SysObjectID = pduString(&pdu)
		case oid.SysUpTime:
			snap.System.SysUptime = pduInt(&pdu)
		}
	}
	return nil
}

func (p *Poller) pollInterfaces(g *gosnmp.GoSNMP, snap *snapshot.Snapshot) error {
	descrs, err := p.walkColumn(g, oid.IfDescr)
	if err != nil {
		return fmt.Errorf("walk ifDescr on %s: %w", snap.Misc.Host, err)
	}

	admin, _ := p.walkColumn(g, oid.IfAdminStatus)
	oper, _ := p.walkColumn(g, oid.IfOperStatus)
	speed, _ := p.walkColumn(g, oid.IfSpeed)
	alias, _ := p.walkColumn(g, oid.IfAlias)
	ifType, _ := p.walkColumn(g, oid.IfType)
	duplex, _ := p.walkColumn(g, oid.Dot3StatsDuplexStatus)

	for ifIndex, descr := range descrs {
		iface := snapshot.Interface{
			IfDescr:       pduString(descr),
			IfAdminStatus: int(pduInt(admin[ifIndex])),
			IfOperStatus:  int(pduInt(oper[ifIndex])),
			IfSpeed:       uint64(pduInt(speed[ifIndex])),
			IfAlias:       pduString(alias[ifIndex]),
			Ethernet:      pduInt(ifType[ifIndex]) == oid.IfTypeEthernet,
			Duplex:        int(pduInt(duplex[ifIndex])),
		}
		snap.Layer1[ifIndex] = iface
	}
	return nil
}

// pollBridge fills per-interface MAC and VLAN lists from the bridge FDB.
// Q-BRIDGE entries carry the VLAN in the index; the plain BRIDGE-MIB table is
// the fallback for switches without dot1q support.
func (p *Poller) pollBridge(g *gosnmp.GoSNMP, snap *snapshot.Snapshot, host string) {
	portToIfIndex := make(map[int]int)
	if ports, err := p.walkColumn(g, oid.Dot1dBasePortIfIndex); err == nil {
		for port, pdu := range ports {
			portToIfIndex[port] = int(pduInt(pdu))
		}
	}
	resolve := func(bridgePort int) (int, bool) {
		if ifIndex, ok := portToIfIndex[bridgePort]; ok {
			return ifIndex, true
		}
		// Some devices report ifIndex directly.
		_, ok := snap.Layer1[bridgePort]
		return bridgePort, ok
	}

	dot1qEntries := 0

	err := g.BulkWalk(oid.Dot1qTpFdbPort, func(pdu gosnmp.SnmpPDU) error {
		suffix := oidSuffix(pdu.Name, oid.Dot1qTpFdbPort)
		parts := strings.Split(suffix, ".")
		// vlan followed by six decimal MAC octets
		if len(parts) != 7 {
			return nil
		}
		vlan, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}
		mac := decimalOctetsToHex(parts[1:])
		if mac == "" {
			return nil
		}
		ifIndex, ok := resolve(int(pduInt(&pdu)))
		if !ok {
			return nil
		}
		dot1qEntries++
		appendBridgeEntry(snap, ifIndex, mac, vlan)
		return nil
	})
	if err != nil || dot1qEntries == 0 {
		// Fall back to the pre-dot1q FDB, which has no VLAN in the index.
		walkErr := g.BulkWalk(oid.Dot1dTpFdbPort, func(pdu gosnmp.SnmpPDU) error {
			suffix := oidSuffix(pdu.Name, oid.Dot1dTpFdbPort)
			parts := strings.Split(suffix, ".")
			if len(parts) != 6 {
				return nil
			}
			mac := decimalOctetsToHex(parts)
			if mac == "" {
				return nil
			}
			ifIndex, ok := resolve(int(pduInt(&pdu)))
			if !ok {
				return nil
			}
			appendBridgeEntry(snap, ifIndex, mac, 0)
			return nil
		})
		if walkErr != nil {
			p.log.Debug().Err(walkErr).Str("host", host).Msg("bridge fdb walk failed")
		}
	}

	// Native VLAN per port.
	if pvids, err := p.walkColumn(g, oid.Dot1qPvid); err == nil {
		for bridgePort, pdu := range pvids {
			ifIndex, ok := resolve(bridgePort)
			if !ok {
				continue
			}
			if iface, ok := snap.Layer1[ifIndex]; ok {
				iface.NativeVlan = int(pduInt(pdu))
				snap.Layer1[ifIndex] = iface
			}
		}
	}

	// A port carrying more than one VLAN is a trunk.
	for ifIndex, iface := range snap.Layer1 {
		if len(iface.Vlans) > 1 {
			iface.Trunk = true
			snap.Layer1[ifIndex] = iface
		}
	}
}

func appendBridgeEntry(snap *snapshot.Snapshot, ifIndex int, mac string, vlan int) {
	iface, ok := snap.Layer1[ifIndex]
	if !ok {
		return
	}
	iface.Macs = append(iface.Macs, mac)
	if vlan != 0 && !containsInt(iface.Vlans, vlan) {
		iface.Vlans = append(iface.Vlans, vlan)
	}
	snap.Layer1[ifIndex] = iface
}

// pollNeighbors fills the optional layer-3 block from the ARP and NDP caches.
func (p *Poller) pollNeighbors(g *gosnmp.GoSNMP, snap *snapshot.Snapshot, host string) {
	layer3 := &snapshot.Layer3{
		IPv4: make(map[string]string),
		IPv6: make(map[string]string),
	}

	err := g.BulkWalk(oid.IPNetToMediaPhysAddress, func(pdu gosnmp.SnmpPDU) error {
		suffix := oidSuffix(pdu.Name, oid.IPNetToMediaPhysAddress)
		parts := strings.Split(suffix, ".")
		// ifIndex followed by four IPv4 octets
		if len(parts) != 5 {
			return nil
		}
		ip := strings.Join(parts[1:], ".")
		if mac := bytesToHex(pdu.Value); mac != "" {
			layer3.IPv4[ip] = mac
		}
		return nil
	})
	if err != nil {
		p.log.Debug().Err(err).Str("host", host).Msg("ipv4 neighbor walk failed")
	}

	err = g.BulkWalk(oid.IPNetToPhysicalPhysAddress, func(pdu gosnmp.SnmpPDU) error {
		suffix := oidSuffix(pdu.Name, oid.IPNetToPhysicalPhysAddress)
		if ip, ok := parseInetAddressIndex(suffix); ok {
			if mac := bytesToHex(pdu.Value); mac != "" {
				layer3.IPv6[ip] = mac
			}
		}
		return nil
	})
	if err != nil {
		p.log.Debug().Err(err).Str("host", host).Msg("ipv6 neighbor walk failed")
	}

	if len(layer3.IPv4) > 0 || len(layer3.IPv6) > 0 {
		snap.Layer3 = layer3
	}
}

// pollLldp fills neighbor-discovery fields for ports with LLDP neighbors.
func (p *Poller) pollLldp(g *gosnmp.GoSNMP, snap *snapshot.Snapshot, host string) {
	columns := []struct {
		base  string
		apply func(iface *snapshot.Interface, value string)
	}{
		{oid.LldpRemSysName, func(i *snapshot.Interface, v string) { i.LldpRemSysName = v }},
		{oid.LldpRemSysDesc, func(i *snapshot.Interface, v string) { i.LldpRemSysDesc = v }},
		{oid.LldpRemPortDesc, func(i *snapshot.Interface, v string) { i.LldpRemPortDesc = v }},
	}

	for _, column := range columns {
		err := g.BulkWalk(column.base, func(pdu gosnmp.SnmpPDU) error {
			suffix := oidSuffix(pdu.Name, column.base)
			parts := strings.Split(suffix, ".")
			// timeMark.localPortNum.remIndex
			if len(parts) != 3 {
				return nil
			}
			localPort, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil
			}
			iface, ok := snap.Layer1[localPort]
			if !ok {
				return nil
			}
			column.apply(&iface, pduString(&pdu))
			snap.Layer1[localPort] = iface
			return nil
		})
		if err != nil {
			p.log.Debug().Err(err).Str("host", host).Msg("lldp walk failed")
			return
		}
	}
}

// walkColumn walks one conceptual table column keyed by a single integer
// index.
func (p *Poller) walkColumn(g *gosnmp.GoSNMP, base string) (map[int]*gosnmp.SnmpPDU, error) {
	rows := make(map[int]*gosnmp.SnmpPDU)
	err := g.BulkWalk(base, func(pdu gosnmp.SnmpPDU) error {
		index, err := strconv.Atoi(oidSuffix(pdu.Name, base))
		if err != nil {
			return nil
		}
		row := pdu
		rows[index] = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func oidSuffix(name, base string) string {
	trimmed := strings.TrimPrefix(name, ".")
	return strings.TrimPrefix(strings.TrimPrefix(trimmed, base), ".")
}

// pduString renders a PDU value as text. Nil rows (absent columns) render
// empty.
func pduString(pdu *gosnmp.SnmpPDU) string {
	if pdu == nil {
		return ""
	}
	switch v := pdu.Value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return ""
	}
}

// pduInt extracts an integer PDU value. Nil rows yield zero.
func pduInt(pdu *gosnmp.SnmpPDU) int64 {
	if pdu == nil || pdu.Value == nil {
		return 0
	}
	return gosnmp.ToBigInt(pdu.Value).Int64()
}

func containsInt(values []int, v int) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

// decimalOctetsToHex converts six decimal OID octets to a colon-separated
// MAC string.
func decimalOctetsToHex(parts []string) string {
	if len(parts) != 6 {
		return ""
	}
	hexParts := make([]string, 6)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return ""
		}
		hexParts[i] = fmt.Sprintf("%02x", n)
	}
	return strings.Join(hexParts, ":")
}

// bytesToHex renders an OctetString PDU value as a colon-separated MAC.
func bytesToHex(value interface{}) string {
	raw, ok := value.([]byte)
	if !ok || len(raw) != 6 {
		return ""
	}
	hexParts := make([]string, len(raw))
	for i, b := range raw {
		hexParts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(hexParts, ":")
}

// parseInetAddressIndex extracts the address from an
// ifIndex.addrType.addrLen.octets... table index.
func parseInetAddressIndex(suffix string) (string, bool) {
	parts := strings.Split(suffix, ".")
	if len(parts) < 3 {
		return "", false
	}
	length, err := strconv.Atoi(parts[2])
	if err != nil || len(parts) != 3+length {
		return "", false
	}
	octets := make([]byte, length)
	for i, part := range parts[3:] {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return "", false
		}
		octets[i] = byte(n)
	}
	switch length {
	case 4:
		addr, _ := netip.AddrFromSlice(octets)
		return addr.String(), true
	case 16:
		addr, _ := netip.AddrFromSlice(octets)
		return addr.String(), true
	default:
		return "", false
	}
}
