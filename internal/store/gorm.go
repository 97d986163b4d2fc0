package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"topomap/internal/models"
)

// Gorm implements Store on a gorm database handle.
type Gorm struct {
	db *gorm.DB
}

// New wraps an opened gorm handle.
func New(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) FindDevice(ctx context.Context, hostname string) (*models.Device, error) {
	var row models.Device
	err := s.db.WithContext(ctx).Where("hostname = ?", hostname).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find device %q: %w", hostname, err)
	}
	return &row, nil
}

func (s *Gorm) InsertDevice(ctx context.Context, row *models.Device) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert device %q: %w", row.Hostname, err)
	}
	return nil
}

func (s *Gorm) UpdateDevice(ctx context.Context, row *models.Device) error {
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("update device %d: %w", row.ID, err)
	}
	return nil
}

func (s *Gorm) ListInterfaces(ctx context.Context, deviceID uint) ([]models.L1Interface, error) {
	var rows []models.L1Interface
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("if_index asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list interfaces for device %d: %w", deviceID, err)
	}
	return rows, nil
}

func (s *Gorm) InsertInterfaces(ctx context.Context, rows []models.L1Interface) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert %d interfaces: %w", len(rows), err)
	}
	return nil
}

func (s *Gorm) UpdateInterface(ctx context.Context, row *models.L1Interface) error {
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("update interface %d: %w", row.ID, err)
	}
	return nil
}

func (s *Gorm) ListVlans(ctx context.Context, deviceID uint) ([]models.Vlan, error) {
	var rows []models.Vlan
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("vlan asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list vlans for device %d: %w", deviceID, err)
	}
	return rows, nil
}

func (s *Gorm) InsertVlans(ctx context.Context, rows []models.Vlan) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert %d vlans: %w", len(rows), err)
	}
	return nil
}

func (s *Gorm) UpdateVlan(ctx context.Context, row *models.Vlan) error {
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("update vlan %d: %w", row.ID, err)
	}
	return nil
}

func (s *Gorm) ListVlanPorts(ctx context.Context, deviceID uint) ([]models.VlanPort, error) {
	var rows []models.VlanPort
	err := s.db.WithContext(ctx).
		Joins("JOIN l1_interfaces ON l1_interfaces.id = vlan_ports.l1_interface_id").
		Where("l1_interfaces.device_id = ?", deviceID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list vlan ports for device %d: %w", deviceID, err)
	}
	return rows, nil
}

func (s *Gorm) InsertVlanPorts(ctx context.Context, rows []models.VlanPort) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert %d vlan ports: %w", len(rows), err)
	}
	return nil
}

func (s *Gorm) UpdateVlanPort(ctx context.Context, row *models.VlanPort) error {
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("update vlan port %d: %w", row.ID, err)
	}
	return nil
}

func (s *Gorm) FindOui(ctx context.Context, prefix string) (*models.Oui, error) {
	var row models.Oui
	err := s.db.WithContext(ctx).Where("prefix = ?", prefix).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find oui %q: %w", prefix, err)
	}
	return &row, nil
}

// InsertOuis inserts vendor prefixes, ignoring rows whose prefix already
// exists. The table is shared across concurrent pipelines.
func (s *Gorm) InsertOuis(ctx context.Context, rows []models.Oui) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "prefix"}},
			DoNothing: true,
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("insert %d ouis: %w", len(rows), err)
	}
	return nil
}

func (s *Gorm) FindMac(ctx context.Context, mac string) (*models.Mac, error) {
	var row models.Mac
	err := s.db.WithContext(ctx).Where("mac = ?", mac).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find mac %q: %w", mac, err)
	}
	return &row, nil
}

// UpsertMacs inserts MAC rows, resolving the cross-device race on the unique
// mac column: a concurrent insert of the same address turns into an update of
// the surviving row instead of a constraint violation.
func (s *Gorm) UpsertMacs(ctx context.Context, rows []models.Mac) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mac"}},
			DoUpdates: clause.AssignmentColumns([]string{"oui_id", "enabled"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert %d macs: %w", len(rows), err)
	}
	return nil
}

func (s *Gorm) UpdateMac(ctx context.Context, row *models.Mac) error {
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("update mac %d: %w", row.ID, err)
	}
	return nil
}

func (s *Gorm) FindMacPort(ctx context.Context, interfaceID, macID uint) (*models.MacPort, error) {
	var row models.MacPort
	err := s.db.WithContext(ctx).
		Where("l1_interface_id = ? AND mac_id = ?", interfaceID, macID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find mac port (%d, %d): %w", interfaceID, macID, err)
	}
	return &row, nil
}

func (s *Gorm) InsertMacPorts(ctx context.Context, rows []models.MacPort) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert %d mac ports: %w", len(rows), err)
	}
	return nil
}

func (s *Gorm) UpdateMacPort(ctx context.Context, row *models.MacPort) error {
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("update mac port %d: %w", row.ID, err)
	}
	return nil
}

func (s *Gorm) FindMacIP(ctx context.Context, deviceID, macID uint, ip string) (*models.MacIP, error) {
	var row models.MacIP
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND mac_id = ? AND ip = ?", deviceID, macID, ip).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find mac ip (%d, %d, %s): %w", deviceID, macID, ip, err)
	}
	return &row, nil
}

func (s *Gorm) InsertMacIPs(ctx context.Context, rows []models.MacIP) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert %d mac ips: %w", len(rows), err)
	}
	return nil
}

func (s *Gorm) UpdateMacIP(ctx context.Context, row *models.MacIP) error {
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("update mac ip %d: %w", row.ID, err)
	}
	return nil
}
