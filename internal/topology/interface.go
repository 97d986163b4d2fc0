package topology

import (
	"context"

	"github.com/jonboulle/clockwork"

	"topomap/internal/models"
	"topomap/internal/oid"
	"topomap/internal/snapshot"
)

// syncInterfaces upserts one L1Interface row per snapshot interface, keyed by
// (device, ifIndex), recomputing the idle timestamp for rows that already
// exist. New interfaces start not-idle.
func (p *run) syncInterfaces(ctx context.Context) error {
	if !p.ready(StageInterfaces) {
		return nil
	}
	p.logStage(StageInterfaces, false)

	existing, err := p.r.store.ListInterfaces(ctx, p.device.ID)
	if err != nil {
		return err
	}
	byIndex := make(map[int]models.L1Interface, len(existing))
	for _, row := range existing {
		byIndex[row.IfIndex] = row
	}

	var inserts []models.L1Interface
	for _, ifIndex := range sortedIfIndexes(p.snap.Layer1) {
		iface := p.snap.Layer1[ifIndex]

		if current, ok := byIndex[ifIndex]; ok {
			row := current
			applyInterface(&row, iface)
			row.TsIdle = nextTsIdle(p.r.clock, current.TsIdle, iface.IfAdminStatus, iface.IfOperStatus)
			if current.TsIdle == 0 && row.TsIdle != 0 {
				p.r.log.Debug().
					Str("host", p.device.Hostname).
					Int("ifIndex", ifIndex).
					Str("operStatus", oid.StatusName(iface.IfOperStatus)).
					Msg("interface entered idle")
			}
			if err := p.r.store.UpdateInterface(ctx, &row); err != nil {
				return err
			}
			continue
		}

		row := models.L1Interface{
			DeviceID: p.device.ID,
			IfIndex:  ifIndex,
			TsIdle:   0,
			Enabled:  true,
		}
		applyInterface(&row, iface)
		inserts = append(inserts, row)
	}

	if err := p.r.store.InsertInterfaces(ctx, inserts); err != nil {
		return err
	}

	p.logStage(StageInterfaces, true)
	p.done = StageInterfaces
	return nil
}

// applyInterface overwrites the descriptive fields from the snapshot.
func applyInterface(row *models.L1Interface, iface snapshot.Interface) {
	row.IfAdminStatus = iface.IfAdminStatus
	row.IfOperStatus = iface.IfOperStatus
	row.IfSpeed = iface.IfSpeed
	row.IfAlias = iface.IfAlias
	row.IfDescr = iface.IfDescr
	row.Duplex = iface.Duplex
	row.Ethernet = iface.Ethernet
	row.NativeVlan = iface.NativeVlan
	row.Trunk = iface.Trunk
	row.CdpCacheDeviceID = iface.CdpCacheDeviceID
	row.CdpCacheDevicePort = iface.CdpCacheDevicePort
	row.CdpCachePlatform = iface.CdpCachePlatform
	row.LldpRemPortDesc = iface.LldpRemPortDesc
	row.LldpRemSysCapEnabled = iface.LldpRemSysCapEnabled
	row.LldpRemSysDesc = iface.LldpRemSysDesc
	row.LldpRemSysName = iface.LldpRemSysName
}

// nextTsIdle advances the idle state machine. The timestamp marks the start
// of an idle episode (admin up, no link) and is sticky until the link comes
// back or the port is administratively disabled.
func nextTsIdle(clock clockwork.Clock, current int64, adminStatus, operStatus int) int64 {
	switch {
	case adminStatus == oid.StatusUp && operStatus == oid.StatusUp:
		// Port enabled with link.
		return 0
	case adminStatus == oid.StatusDown:
		// Port disabled.
		return 0
	default:
		// Port enabled, no link.
		if current != 0 {
			return current
		}
		return clock.Now().Unix()
	}
}
