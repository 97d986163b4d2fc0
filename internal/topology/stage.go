package topology

// Stage is the ordered progression of the reconciliation pipeline. A stage
// may only run once its predecessor has completed for the same device, so
// referential integrity holds between dependent tables.
type Stage int

const (
	StageNone Stage = iota
	StageDevice
	StageInterfaces
	StageVlans
	StageVlanPorts
	StageMacs
	StageMacPorts
	StageMacIPs
)

var stageNames = map[Stage]string{
	StageNone:       "none",
	StageDevice:     "device",
	StageInterfaces: "l1interface",
	StageVlans:      "vlan",
	StageVlanPorts:  "vlanport",
	StageMacs:       "mac",
	StageMacPorts:   "macport",
	StageMacIPs:     "macip",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}
