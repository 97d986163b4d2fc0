package models

// Device is one polled network device, keyed by hostname.
type Device struct {
	ID             uint   `gorm:"primaryKey"`
	Hostname       string `gorm:"uniqueIndex;not null"`
	Name           string
	SysName        string
	SysDescription string
	SysObjectID    string
	SysUptime      int64
	LastPolled     int64
	Enabled        bool
}

// L1Interface is one physical or logical interface of a device,
// keyed by (device, ifIndex).
type L1Interface struct {
	ID                   uint `gorm:"primaryKey"`
	DeviceID             uint `gorm:"uniqueIndex:idx_device_ifindex;not null"`
	IfIndex              int  `gorm:"uniqueIndex:idx_device_ifindex;not null"`
	IfAdminStatus        int
	IfOperStatus         int
	IfSpeed              uint64
	IfAlias              string
	IfDescr              string
	Duplex               int
	Ethernet             bool
	NativeVlan           int
	Trunk                bool
	CdpCacheDeviceID     string
	CdpCacheDevicePort   string
	CdpCachePlatform     string
	LldpRemPortDesc      string
	LldpRemSysCapEnabled string
	LldpRemSysDesc       string
	LldpRemSysName       string
	// TsIdle is the unix time the interface was first seen enabled but
	// without link. Zero while the port is in use or administratively down.
	TsIdle  int64
	Enabled bool
}

// Vlan is one VLAN referenced by a device, keyed by (device, vlan number).
type Vlan struct {
	ID       uint `gorm:"primaryKey"`
	DeviceID uint `gorm:"uniqueIndex:idx_device_vlan;not null"`
	Vlan     int  `gorm:"uniqueIndex:idx_device_vlan;not null"`
	Name     string
	State    int
	Enabled  bool
}

// VlanPort associates an interface with a VLAN it carries.
type VlanPort struct {
	ID            uint `gorm:"primaryKey"`
	L1InterfaceID uint `gorm:"uniqueIndex:idx_interface_vlan;not null"`
	VlanID        uint `gorm:"uniqueIndex:idx_interface_vlan;not null"`
	Enabled       bool
}

// UnknownOuiID is the sentinel Oui row MACs with an unmatched vendor prefix
// reference. Seeded during migration; missing it is a startup failure.
const UnknownOuiID uint = 1

// Oui maps a 6-hex-char MAC vendor prefix to a vendor name. Row 1 is the
// sentinel "unknown vendor" entry seeded at startup.
type Oui struct {
	ID     uint   `gorm:"primaryKey"`
	Prefix string `gorm:"uniqueIndex;not null"`
	Vendor string
}

// Mac is a MAC address in canonical lowercase bare-hex form. The table is
// shared by every device; the mac column is globally unique.
type Mac struct {
	ID      uint   `gorm:"primaryKey"`
	OuiID   uint   `gorm:"not null"`
	Mac     string `gorm:"uniqueIndex;not null"`
	Enabled bool
}

// MacPort associates an interface with a MAC address learned on it.
type MacPort struct {
	ID            uint `gorm:"primaryKey"`
	L1InterfaceID uint `gorm:"uniqueIndex:idx_interface_mac;not null"`
	MacID         uint `gorm:"uniqueIndex:idx_interface_mac;not null"`
	Enabled       bool
}

// MacIP is an IP-to-MAC binding learned from a device's neighbor tables,
// keyed by (device, mac, ip).
type MacIP struct {
	ID       uint   `gorm:"primaryKey"`
	DeviceID uint   `gorm:"uniqueIndex:idx_device_mac_ip;not null"`
	MacID    uint   `gorm:"uniqueIndex:idx_device_mac_ip;not null"`
	IP       string `gorm:"uniqueIndex:idx_device_mac_ip;not null"`
	Hostname *string
	Version  int
	Enabled  bool
}
