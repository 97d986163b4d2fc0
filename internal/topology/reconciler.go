// Package topology reconciles one device snapshot into the relational store.
// The pipeline runs seven stages in strict order: device, interfaces, vlans,
// vlan-port links, macs, mac-port links, ip-to-mac bindings. Stages for one
// device never interleave; independent devices reconcile concurrently and
// meet only on the shared Mac and Oui tables.
package topology

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"topomap/internal/dns"
	"topomap/internal/models"
	"topomap/internal/snapshot"
	"topomap/internal/store"
)

// Config wires the reconciler's collaborators.
type Config struct {
	Store    store.Store
	Resolver dns.Resolver // may be nil; reverse lookups are then skipped
	Clock    clockwork.Clock
	Logger   zerolog.Logger
	Dump     snapshot.DumpFunc // optional raw-snapshot diagnostic hook
}

// Reconciler is the per-process pipeline runner. It holds no per-device
// state; Reconcile may be called for many devices at once.
type Reconciler struct {
	store    store.Store
	resolver dns.Resolver
	clock    clockwork.Clock
	log      zerolog.Logger
	dump     snapshot.DumpFunc
}

// New validates the config and builds a Reconciler.
func New(cfg Config) (*Reconciler, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Reconciler{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		dump:     cfg.Dump,
	}, nil
}

// Reconcile processes one device snapshot. It returns nil on success, an
// error wrapping ErrMalformedSnapshot when the snapshot lacks identity
// fields, or the store failure that aborted the cycle. A failure affects
// this device's cycle only; the next poll re-derives and corrects any
// partially applied state.
func (r *Reconciler) Reconcile(ctx context.Context, snap *snapshot.Snapshot, dnsEnabled bool) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedSnapshot, err)
	}

	if r.dump != nil {
		if err := r.dump(snap); err != nil {
			r.log.Warn().Err(err).Str("host", snap.Misc.Host).Msg("snapshot dump failed")
		}
	}

	device, err := r.registerDevice(ctx, snap)
	if err != nil {
		return err
	}

	p := &run{
		r:       r,
		snap:    snap,
		device:  device,
		dns:     dnsEnabled,
		done:    StageDevice,
		started: r.clock.Now(),
	}

	stages := []func(context.Context) error{
		p.syncInterfaces,
		p.syncVlans,
		p.linkVlanPorts,
		p.syncMacs,
		p.linkMacPorts,
		p.syncMacIPs,
	}
	for _, stage := range stages {
		if err := stage(ctx); err != nil {
			return err
		}
	}
	return nil
}

// registerDevice upserts the device identity row and returns it. Every later
// stage keys its rows off the returned id.
func (r *Reconciler) registerDevice(ctx context.Context, snap *snapshot.Snapshot) (*models.Device, error) {
	hostname := snap.Misc.Host
	r.log.Debug().Str("host", hostname).Msg("updating device table")

	row := models.Device{
		Hostname:       hostname,
		Name:           hostname,
		SysName:        snap.System.SysName,
		SysDescription: snap.System.SysDescription,
		SysObjectID:    snap.System.SysObjectID,
		SysUptime:      snap.System.SysUptime,
		LastPolled:     snap.Misc.Timestamp,
		Enabled:        true,
	}

	existing, err := r.store.FindDevice(ctx, hostname)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		row.ID = existing.ID
		if err := r.store.UpdateDevice(ctx, &row); err != nil {
			return nil, err
		}
		return &row, nil
	}
	if err := r.store.InsertDevice(ctx, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// run is the state of one device's pipeline execution.
type run struct {
	r       *Reconciler
	snap    *snapshot.Snapshot
	device  *models.Device
	dns     bool
	done    Stage
	started time.Time
}

// ready reports whether every predecessor of s has completed. A false result
// is an internal invariant violation: the stage logs and skips.
func (p *run) ready(s Stage) bool {
	if p.done >= s-1 {
		return true
	}
	p.r.log.Error().
		Err(ErrStageNotReady).
		Str("host", p.device.Hostname).
		Stringer("stage", s).
		Stringer("completed", p.done).
		Msg("invalid update sequence, skipping stage")
	return false
}

func (p *run) logStage(s Stage, completed bool) {
	verb := "starting"
	if completed {
		verb = "completed"
	}
	p.r.log.Debug().
		Str("host", p.device.Hostname).
		Stringer("stage", s).
		Dur("elapsed", p.r.clock.Now().Sub(p.started)).
		Msgf("%s table update", verb)
}

func sortedIfIndexes(m map[int]snapshot.Interface) []int {
	indexes := make([]int, 0, len(m))
	for ifIndex := range m {
		indexes = append(indexes, ifIndex)
	}
	sort.Ints(indexes)
	return indexes
}
