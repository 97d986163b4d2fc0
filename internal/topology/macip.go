package topology

import (
	"context"
	"sort"

	"topomap/internal/models"
	"topomap/internal/netutil"
)

type macIPUpdate struct {
	row models.MacIP
}

type macIPKey struct {
	macID uint
	ip    string
}

// syncMacIPs upserts IP-to-MAC bindings from the optional layer-3 neighbor
// tables, enriching each with a best-effort reverse-DNS hostname. Invalid
// addresses and MACs never learned on an interface are dropped entry by
// entry. Updates apply in sorted order; inserts go as one batch.
func (p *run) syncMacIPs(ctx context.Context) error {
	if !p.ready(StageMacIPs) {
		return nil
	}
	p.logStage(StageMacIPs, false)

	var adds []models.MacIP
	var updates []macIPUpdate

	if p.snap.Layer3 != nil {
		// Distinct raw spellings can normalize to the same address, across
		// tables too: dedup on the canonical (mac, ip) pair.
		queued := make(map[macIPKey]struct{})
		for _, table := range []map[string]string{p.snap.Layer3.IPv4, p.snap.Layer3.IPv6} {
			tableAdds, tableUpdates, err := p.processNeighborTable(ctx, table, queued)
			if err != nil {
				return err
			}
			adds = append(adds, tableAdds...)
			updates = append(updates, tableUpdates...)
		}
	}

	sort.Slice(updates, func(i, j int) bool { return updates[i].row.IP < updates[j].row.IP })
	for _, update := range updates {
		row := update.row
		if err := p.r.store.UpdateMacIP(ctx, &row); err != nil {
			return err
		}
	}
	if err := p.r.store.InsertMacIPs(ctx, adds); err != nil {
		return err
	}

	p.logStage(StageMacIPs, true)
	p.done = StageMacIPs
	return nil
}

// processNeighborTable turns one IP-to-MAC table into queued inserts and
// updates. Only store failures are errors; bad entries are skipped.
func (p *run) processNeighborTable(ctx context.Context, table map[string]string, queued map[macIPKey]struct{}) ([]models.MacIP, []macIPUpdate, error) {
	var adds []models.MacIP
	var updates []macIPUpdate

	ips := make([]string, 0, len(table))
	for ip := range table {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	for _, rawIP := range ips {
		ip, version, ok := netutil.IP(rawIP)
		if !ok {
			p.r.log.Debug().
				Str("host", p.device.Hostname).
				Str("ip", rawIP).
				Msg("dropping invalid neighbor address")
			continue
		}
		mac, ok := netutil.Mac(table[rawIP])
		if !ok {
			continue
		}

		// A MAC seen only in a neighbor table, never on an interface,
		// cannot be linked.
		macRow, err := p.r.store.FindMac(ctx, mac)
		if err != nil {
			return nil, nil, err
		}
		if macRow == nil {
			continue
		}

		key := macIPKey{macRow.ID, ip}
		if _, dup := queued[key]; dup {
			continue
		}
		queued[key] = struct{}{}

		row := models.MacIP{
			DeviceID: p.device.ID,
			MacID:    macRow.ID,
			IP:       ip,
			Hostname: p.reverseLookup(ctx, ip),
			Version:  version,
			Enabled:  true,
		}

		current, err := p.r.store.FindMacIP(ctx, p.device.ID, macRow.ID, ip)
		if err != nil {
			return nil, nil, err
		}
		if current != nil {
			row.ID = current.ID
			updates = append(updates, macIPUpdate{row: row})
		} else {
			adds = append(adds, row)
		}
	}
	return adds, updates, nil
}

// reverseLookup returns the resolved hostname or nil. Lookup failure is an
// enrichment failure only and never fails the entry.
func (p *run) reverseLookup(ctx context.Context, ip string) *string {
	if !p.dns || p.r.resolver == nil {
		return nil
	}
	name, err := p.r.resolver.ReverseLookup(ctx, ip)
	if err != nil || name == "" {
		return nil
	}
	return &name
}
