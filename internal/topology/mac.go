package topology

import (
	"context"
	"sort"

	"topomap/internal/models"
	"topomap/internal/netutil"
)

// syncMacs upserts the globally shared Mac table from the MAC addresses
// observed on the device's interfaces. Addresses and their vendor prefixes
// are deduplicated before any lookup. The mac column's uniqueness constraint
// plus the store's conflict-tolerant upsert absorb races with other devices
// observing the same address.
func (p *run) syncMacs(ctx context.Context) error {
	if !p.ready(StageMacs) {
		return nil
	}
	p.logStage(StageMacs, false)

	interfaces, err := p.r.store.ListInterfaces(ctx, p.device.ID)
	if err != nil {
		return err
	}
	known := make(map[int]struct{}, len(interfaces))
	for _, row := range interfaces {
		known[row.IfIndex] = struct{}{}
	}

	macSet := make(map[string]struct{})
	for ifIndex, iface := range p.snap.Layer1 {
		if _, ok := known[ifIndex]; !ok {
			continue
		}
		for _, raw := range iface.Macs {
			mac, ok := netutil.Mac(raw)
			if !ok {
				p.r.log.Debug().
					Str("host", p.device.Hostname).
					Str("mac", raw).
					Msg("dropping unparseable mac")
				continue
			}
			macSet[mac] = struct{}{}
		}
	}

	macs := make([]string, 0, len(macSet))
	ouiSet := make(map[string]struct{})
	for mac := range macSet {
		macs = append(macs, mac)
		ouiSet[netutil.Oui(mac)] = struct{}{}
	}
	sort.Strings(macs)

	ouis := make([]string, 0, len(ouiSet))
	for prefix := range ouiSet {
		ouis = append(ouis, prefix)
	}
	sort.Strings(ouis)

	// Resolve vendor references, falling back to the unknown-vendor sentinel.
	ouiIDs := make(map[string]uint, len(ouis))
	for _, prefix := range ouis {
		row, err := p.r.store.FindOui(ctx, prefix)
		if err != nil {
			return err
		}
		if row != nil {
			ouiIDs[prefix] = row.ID
		} else {
			ouiIDs[prefix] = models.UnknownOuiID
		}
	}

	var inserts []models.Mac
	for _, mac := range macs {
		current, err := p.r.store.FindMac(ctx, mac)
		if err != nil {
			return err
		}
		if current != nil {
			row := *current
			row.OuiID = ouiIDs[netutil.Oui(mac)]
			row.Enabled = true
			if err := p.r.store.UpdateMac(ctx, &row); err != nil {
				return err
			}
			continue
		}
		inserts = append(inserts, models.Mac{
			OuiID:   ouiIDs[netutil.Oui(mac)],
			Mac:     mac,
			Enabled: true,
		})
	}

	if err := p.r.store.UpsertMacs(ctx, inserts); err != nil {
		return err
	}

	p.logStage(StageMacs, true)
	p.done = StageMacs
	return nil
}

type macPortKey struct {
	interfaceID uint
	macID       uint
}

// linkMacPorts upserts the interface-to-MAC join rows. A MAC that cannot be
// resolved in the shared table drops that single association only.
func (p *run) linkMacPorts(ctx context.Context) error {
	if !p.ready(StageMacPorts) {
		return nil
	}
	p.logStage(StageMacPorts, false)

	interfaces, err := p.r.store.ListInterfaces(ctx, p.device.ID)
	if err != nil {
		return err
	}
	byIndex := make(map[int]models.L1Interface, len(interfaces))
	for _, row := range interfaces {
		byIndex[row.IfIndex] = row
	}

	var inserts []models.MacPort
	queued := make(map[macPortKey]struct{})
	for _, ifIndex := range sortedIfIndexes(p.snap.Layer1) {
		l1, ok := byIndex[ifIndex]
		if !ok {
			continue
		}

		macs := make([]string, 0, len(p.snap.Layer1[ifIndex].Macs))
		for _, raw := range p.snap.Layer1[ifIndex].Macs {
			if mac, ok := netutil.Mac(raw); ok {
				macs = append(macs, mac)
			}
		}
		sort.Strings(macs)

		for _, mac := range macs {
			macRow, err := p.r.store.FindMac(ctx, mac)
			if err != nil {
				return err
			}
			if macRow == nil {
				continue
			}
			key := macPortKey{l1.ID, macRow.ID}

			current, err := p.r.store.FindMacPort(ctx, l1.ID, macRow.ID)
			if err != nil {
				return err
			}
			if current != nil {
				row := *current
				row.Enabled = true
				if err := p.r.store.UpdateMacPort(ctx, &row); err != nil {
					return err
				}
				continue
			}
			if _, dup := queued[key]; dup {
				continue
			}
			queued[key] = struct{}{}
			inserts = append(inserts, models.MacPort{
				L1InterfaceID: l1.ID,
				MacID:         macRow.ID,
				Enabled:       true,
			})
		}
	}

	if err := p.r.store.InsertMacPorts(ctx, inserts); err != nil {
		return err
	}

	p.logStage(StageMacPorts, true)
	p.done = StageMacPorts
	return nil
}
