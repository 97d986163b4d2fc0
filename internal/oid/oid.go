// Package oid holds the SNMP object identifiers and status enums the poller
// walks to assemble a device snapshot.
package oid

// System group (SNMPv2-MIB).
const (
	SysDescr    = "1.3.6.1.2.1.1.1.0"
	SysObjectID = "1.3.6.1.2.1.1.2.0"
	SysUpTime   = "1.3.6.1.2.1.1.3.0"
	SysName     = "1.3.6.1.2.1.1.5.0"
)

// Interface table (IF-MIB).
const (
	IfDescr       = "1.3.6.1.2.1.2.2.1.2"
	IfType        = "1.3.6.1.2.1.2.2.1.3"
	IfSpeed       = "1.3.6.1.2.1.2.2.1.5"
	IfAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	IfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	IfAlias       = "1.3.6.1.2.1.31.1.1.1.18"

	Dot3StatsDuplexStatus = "1.3.6.1.2.1.10.7.2.1.19"
)

// ifType value for ethernet-csmacd.
const IfTypeEthernet = 6

// Bridge tables (BRIDGE-MIB / Q-BRIDGE-MIB).
const (
	Dot1dBasePortIfIndex = "1.3.6.1.2.1.17.1.4.1.2"
	Dot1dTpFdbPort       = "1.3.6.1.2.1.17.4.3.1.2"
	Dot1qTpFdbPort       = "1.3.6.1.2.1.17.7.1.2.2.1.2"
	Dot1qPvid            = "1.3.6.1.2.1.17.7.1.4.5.1.1"
)

// Neighbor tables (IP-MIB).
const (
	IPNetToMediaPhysAddress    = "1.3.6.1.2.1.4.22.1.2"
	IPNetToPhysicalPhysAddress = "1.3.6.1.2.1.4.35.1.4"
)

// LLDP remote systems (LLDP-MIB).
const (
	LldpRemPortDesc = "1.0.8802.1.1.2.1.4.1.1.8"
	LldpRemSysName  = "1.0.8802.1.1.2.1.4.1.1.9"
	LldpRemSysDesc  = "1.0.8802.1.1.2.1.4.1.1.10"
)

// ifAdminStatus / ifOperStatus values.
const (
	StatusUp   = 1
	StatusDown = 2
)

var statusNames = map[int]string{
	1: "UP",
	2: "DOWN",
	3: "TESTING",
	4: "UNKNOWN",
	5: "DORMANT",
	6: "NOT_PRESENT",
	7: "LOWER_LAYER_DOWN",
}

// StatusName renders an interface status value for logs.
func StatusName(v int) string {
	if name, ok := statusNames[v]; ok {
		return name
	}
	return "UNKNOWN"
}
