package topology

import (
	"context"
	"sync"

	"topomap/internal/models"
)

// memStore is an in-memory Store with the same contract as the gorm
// implementation: absent rows are (nil, nil), the mac and oui natural keys
// are unique, and UpsertMacs tolerates concurrent insertion of the same
// address. failOn forces a store failure for a named operation.
type memStore struct {
	mu     sync.Mutex
	nextID uint

	devices    []models.Device
	interfaces []models.L1Interface
	vlans      []models.Vlan
	vlanPorts  []models.VlanPort
	ouis       []models.Oui
	macs       []models.Mac
	macPorts   []models.MacPort
	macIPs     []models.MacIP

	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{failOn: make(map[string]error)}
}

func (m *memStore) fail(op string) error {
	return m.failOn[op]
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) FindDevice(_ context.Context, hostname string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindDevice"); err != nil {
		return nil, err
	}
	for _, row := range m.devices {
		if row.Hostname == hostname {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertDevice(_ context.Context, row *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertDevice"); err != nil {
		return err
	}
	row.ID = m.id()
	m.devices = append(m.devices, *row)
	return nil
}

func (m *memStore) UpdateDevice(_ context.Context, row *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateDevice"); err != nil {
		return err
	}
	for i := range m.devices {
		if m.devices[i].ID == row.ID {
			m.devices[i] = *row
		}
	}
	return nil
}

func (m *memStore) ListInterfaces(_ context.Context, deviceID uint) ([]models.L1Interface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListInterfaces"); err != nil {
		return nil, err
	}
	var rows []models.L1Interface
	for _, row := range m.interfaces {
		if row.DeviceID == deviceID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (m *memStore) InsertInterfaces(_ context.Context, rows []models.L1Interface) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertInterfaces"); err != nil {
		return err
	}
	for _, row := range rows {
		row.ID = m.id()
		m.interfaces = append(m.interfaces, row)
	}
	return nil
}

func (m *memStore) UpdateInterface(_ context.Context, row *models.L1Interface) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateInterface"); err != nil {
		return err
	}
	for i := range m.interfaces {
		if m.interfaces[i].ID == row.ID {
			m.interfaces[i] = *row
		}
	}
	return nil
}

func (m *memStore) ListVlans(_ context.Context, deviceID uint) ([]models.Vlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListVlans"); err != nil {
		return nil, err
	}
	var rows []models.Vlan
	for _, row := range m.vlans {
		if row.DeviceID == deviceID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (m *memStore) InsertVlans(_ context.Context, rows []models.Vlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertVlans"); err != nil {
		return err
	}
	for _, row := range rows {
		row.ID = m.id()
		m.vlans = append(m.vlans, row)
	}
	return nil
}

func (m *memStore) UpdateVlan(_ context.Context, row *models.Vlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateVlan"); err != nil {
		return err
	}
	for i := range m.vlans {
		if m.vlans[i].ID == row.ID {
			m.vlans[i] = *row
		}
	}
	return nil
}

func (m *memStore) ListVlanPorts(_ context.Context, deviceID uint) ([]models.VlanPort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListVlanPorts"); err != nil {
		return nil, err
	}
	owned := make(map[uint]bool)
	for _, iface := range m.interfaces {
		if iface.DeviceID == deviceID {
			owned[iface.ID] = true
		}
	}
	var rows []models.VlanPort
	for _, row := range m.vlanPorts {
		if owned[row.L1InterfaceID] {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (m *memStore) InsertVlanPorts(_ context.Context, rows []models.VlanPort) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertVlanPorts"); err != nil {
		return err
	}
	for _, row := range rows {
		row.ID = m.id()
		m.vlanPorts = append(m.vlanPorts, row)
	}
	return nil
}

func (m *memStore) UpdateVlanPort(_ context.Context, row *models.VlanPort) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateVlanPort"); err != nil {
		return err
	}
	for i := range m.vlanPorts {
		if m.vlanPorts[i].ID == row.ID {
			m.vlanPorts[i] = *row
		}
	}
	return nil
}

func (m *memStore) FindOui(_ context.Context, prefix string) (*models.Oui, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindOui"); err != nil {
		return nil, err
	}
	for _, row := range m.ouis {
		if row.Prefix == prefix {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertOuis(_ context.Context, rows []models.Oui) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertOuis"); err != nil {
		return err
	}
next:
	for _, row := range rows {
		for _, existing := range m.ouis {
			if existing.Prefix == row.Prefix {
				continue next
			}
		}
		if row.ID == 0 {
			row.ID = m.id()
		} else if row.ID > m.nextID {
			m.nextID = row.ID
		}
		m.ouis = append(m.ouis, row)
	}
	return nil
}

func (m *memStore) FindMac(_ context.Context, mac string) (*models.Mac, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindMac"); err != nil {
		return nil, err
	}
	for _, row := range m.macs {
		if row.Mac == mac {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpsertMacs(_ context.Context, rows []models.Mac) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertMacs"); err != nil {
		return err
	}
next:
	for _, row := range rows {
		for i := range m.macs {
			if m.macs[i].Mac == row.Mac {
				m.macs[i].OuiID = row.OuiID
				m.macs[i].Enabled = row.Enabled
				continue next
			}
		}
		row.ID = m.id()
		m.macs = append(m.macs, row)
	}
	return nil
}

func (m *memStore) UpdateMac(_ context.Context, row *models.Mac) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateMac"); err != nil {
		return err
	}
	for i := range m.macs {
		if m.macs[i].ID == row.ID {
			m.macs[i] = *row
		}
	}
	return nil
}

func (m *memStore) FindMacPort(_ context.Context, interfaceID, macID uint) (*models.MacPort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindMacPort"); err != nil {
		return nil, err
	}
	for _, row := range m.macPorts {
		if row.L1InterfaceID == interfaceID && row.MacID == macID {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertMacPorts(_ context.Context, rows []models.MacPort) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertMacPorts"); err != nil {
		return err
	}
	for _, row := range rows {
		row.ID = m.id()
		m.macPorts = append(m.macPorts, row)
	}
	return nil
}

func (m *memStore) UpdateMacPort(_ context.Context, row *models.MacPort) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateMacPort"); err != nil {
		return err
	}
	for i := range m.macPorts {
		if m.macPorts[i].ID == row.ID {
			m.macPorts[i] = *row
		}
	}
	return nil
}

func (m *memStore) FindMacIP(_ context.Context, deviceID, macID uint, ip string) (*models.MacIP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindMacIP"); err != nil {
		return nil, err
	}
	for _, row := range m.macIPs {
		if row.DeviceID == deviceID && row.MacID == macID && row.IP == ip {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertMacIPs(_ context.Context, rows []models.MacIP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertMacIPs"); err != nil {
		return err
	}
	for _, row := range rows {
		row.ID = m.id()
		m.macIPs = append(m.macIPs, row)
	}
	return nil
}

func (m *memStore) UpdateMacIP(_ context.Context, row *models.MacIP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateMacIP"); err != nil {
		return err
	}
	for i := range m.macIPs {
		if m.macIPs[i].ID == row.ID {
			m.macIPs[i] = *row
		}
	}
	return nil
}

// snapshot accessors for assertions

func (m *memStore) counts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"devices":    len(m.devices),
		"interfaces": len(m.interfaces),
		"vlans":      len(m.vlans),
		"vlanPorts":  len(m.vlanPorts),
		"macs":       len(m.macs),
		"macPorts":   len(m.macPorts),
		"macIPs":     len(m.macIPs),
	}
}

func (m *memStore) interfaceByIndex(deviceID uint, ifIndex int) *models.L1Interface {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.interfaces {
		if row.DeviceID == deviceID && row.IfIndex == ifIndex {
			copied := row
			return &copied
		}
	}
	return nil
}

func (m *memStore) macByAddress(mac string) *models.Mac {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.macs {
		if row.Mac == mac {
			copied := row
			return &copied
		}
	}
	return nil
}

func (m *memStore) allMacIPs() []models.MacIP {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.MacIP(nil), m.macIPs...)
}

func (m *memStore) allMacPorts() []models.MacPort {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.MacPort(nil), m.macPorts...)
}
