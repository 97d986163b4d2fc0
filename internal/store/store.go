// Package store is the persistence layer consumed by the reconciliation
// pipeline. Every method is atomic for the rows it touches; callers must not
// assume transactions spanning calls.
package store

import (
	"context"

	"topomap/internal/models"
)

// Store exposes the per-table existence, insert and update primitives the
// pipeline requires. Absent rows are reported as (nil, nil), never as errors.
type Store interface {
	// Device, keyed by hostname.
	FindDevice(ctx context.Context, hostname string) (*models.Device, error)
	InsertDevice(ctx context.Context, row *models.Device) error
	UpdateDevice(ctx context.Context, row *models.Device) error

	// L1Interface, keyed by (device, ifIndex).
	ListInterfaces(ctx context.Context, deviceID uint) ([]models.L1Interface, error)
	InsertInterfaces(ctx context.Context, rows []models.L1Interface) error
	UpdateInterface(ctx context.Context, row *models.L1Interface) error

	// Vlan, keyed by (device, vlan number).
	ListVlans(ctx context.Context, deviceID uint) ([]models.Vlan, error)
	InsertVlans(ctx context.Context, rows []models.Vlan) error
	UpdateVlan(ctx context.Context, row *models.Vlan) error

	// VlanPort, keyed by (interface, vlan).
	ListVlanPorts(ctx context.Context, deviceID uint) ([]models.VlanPort, error)
	InsertVlanPorts(ctx context.Context, rows []models.VlanPort) error
	UpdateVlanPort(ctx context.Context, row *models.VlanPort) error

	// Oui, keyed by vendor prefix. Shared across devices.
	FindOui(ctx context.Context, prefix string) (*models.Oui, error)
	InsertOuis(ctx context.Context, rows []models.Oui) error

	// Mac, keyed by address. Shared across devices: UpsertMacs must be safe
	// against concurrent insertion of the same address by another pipeline.
	FindMac(ctx context.Context, mac string) (*models.Mac, error)
	UpsertMacs(ctx context.Context, rows []models.Mac) error
	UpdateMac(ctx context.Context, row *models.Mac) error

	// MacPort, keyed by (interface, mac).
	FindMacPort(ctx context.Context, interfaceID, macID uint) (*models.MacPort, error)
	InsertMacPorts(ctx context.Context, rows []models.MacPort) error
	UpdateMacPort(ctx context.Context, row *models.MacPort) error

	// MacIP, keyed by (device, mac, ip).
	FindMacIP(ctx context.Context, deviceID, macID uint, ip string) (*models.MacIP, error)
	InsertMacIPs(ctx context.Context, rows []models.MacIP) error
	UpdateMacIP(ctx context.Context, row *models.MacIP) error
}
