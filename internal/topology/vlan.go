package topology

import (
	"context"
	"sort"

	"topomap/internal/models"
)

// syncVlans upserts one Vlan row per unique VLAN number referenced by any
// interface of the device. Deduplication happens before any existence
// lookup; inserts are batched after the scan.
func (p *run) syncVlans(ctx context.Context) error {
	if !p.ready(StageVlans) {
		return nil
	}
	p.logStage(StageVlans, false)

	seen := make(map[int]struct{})
	for _, iface := range p.snap.Layer1 {
		for _, vlan := range iface.Vlans {
			seen[vlan] = struct{}{}
		}
	}
	unique := make([]int, 0, len(seen))
	for vlan := range seen {
		unique = append(unique, vlan)
	}
	sort.Ints(unique)

	existing, err := p.r.store.ListVlans(ctx, p.device.ID)
	if err != nil {
		return err
	}
	byNumber := make(map[int]models.Vlan, len(existing))
	for _, row := range existing {
		byNumber[row.Vlan] = row
	}

	var inserts []models.Vlan
	for _, vlan := range unique {
		if current, ok := byNumber[vlan]; ok {
			row := current
			row.Enabled = true
			if err := p.r.store.UpdateVlan(ctx, &row); err != nil {
				return err
			}
			continue
		}
		inserts = append(inserts, models.Vlan{
			DeviceID: p.device.ID,
			Vlan:     vlan,
			Enabled:  true,
		})
	}

	if err := p.r.store.InsertVlans(ctx, inserts); err != nil {
		return err
	}

	p.logStage(StageVlans, true)
	p.done = StageVlans
	return nil
}

type vlanPortKey struct {
	interfaceID uint
	vlanID      uint
}

// linkVlanPorts upserts the interface-to-VLAN join rows. Associations whose
// interface or VLAN row cannot be resolved are dropped, not fatal.
func (p *run) linkVlanPorts(ctx context.Context) error {
	if !p.ready(StageVlanPorts) {
		return nil
	}
	p.logStage(StageVlanPorts, false)

	interfaces, err := p.r.store.ListInterfaces(ctx, p.device.ID)
	if err != nil {
		return err
	}
	byIndex := make(map[int]models.L1Interface, len(interfaces))
	for _, row := range interfaces {
		byIndex[row.IfIndex] = row
	}

	vlans, err := p.r.store.ListVlans(ctx, p.device.ID)
	if err != nil {
		return err
	}
	byNumber := make(map[int]models.Vlan, len(vlans))
	for _, row := range vlans {
		byNumber[row.Vlan] = row
	}

	links, err := p.r.store.ListVlanPorts(ctx, p.device.ID)
	if err != nil {
		return err
	}
	byPair := make(map[vlanPortKey]models.VlanPort, len(links))
	for _, row := range links {
		byPair[vlanPortKey{row.L1InterfaceID, row.VlanID}] = row
	}

	var inserts []models.VlanPort
	queued := make(map[vlanPortKey]struct{})
	for _, ifIndex := range sortedIfIndexes(p.snap.Layer1) {
		l1, ok := byIndex[ifIndex]
		if !ok {
			continue
		}
		vlanNumbers := append([]int(nil), p.snap.Layer1[ifIndex].Vlans...)
		sort.Ints(vlanNumbers)

		for _, vlan := range vlanNumbers {
			vlanRow, ok := byNumber[vlan]
			if !ok {
				continue
			}
			key := vlanPortKey{l1.ID, vlanRow.ID}

			if current, ok := byPair[key]; ok {
				row := current
				row.Enabled = true
				if err := p.r.store.UpdateVlanPort(ctx, &row); err != nil {
					return err
				}
				continue
			}
			if _, dup := queued[key]; dup {
				continue
			}
			queued[key] = struct{}{}
			inserts = append(inserts, models.VlanPort{
				L1InterfaceID: l1.ID,
				VlanID:        vlanRow.ID,
				Enabled:       true,
			})
		}
	}

	if err := p.r.store.InsertVlanPorts(ctx, inserts); err != nil {
		return err
	}

	p.logStage(StageVlanPorts, true)
	p.done = StageVlanPorts
	return nil
}
