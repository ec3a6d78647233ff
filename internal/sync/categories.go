package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// categoryTranslator resolves category/list names between the stores. The
// two sides may legitimately differ in case ("work" vs "Work"), so tasks
// are canonicalized to the mapping's shared name for hashing and pairing,
// and translated back to the side-specific spelling when an action is
// dispatched.
type categoryTranslator struct {
	canonical map[string]string // normalized name -> canonical name
	device    map[string]string // normalized name -> Device-side name
	host      map[string]string // normalized name -> Host-side name
}

func newCategoryTranslator() *categoryTranslator {
	return &categoryTranslator{
		canonical: make(map[string]string),
		device:    make(map[string]string),
		host:      make(map[string]string),
	}
}

// register binds one mapped category: its current Device name, its current
// Host name, and the canonical (mapping) name. aliases are stale names that
// should resolve to the same entry, such as a pre-rename name.
func (ct *categoryTranslator) register(deviceName, hostName, canonical string, aliases ...string) {
	keys := append([]string{deviceName, hostName, canonical}, aliases...)
	for _, name := range keys {
		k := normalizeTitle(name)
		ct.canonical[k] = canonical
		ct.device[k] = deviceName
		ct.host[k] = hostName
	}
}

// Canonical returns the shared mapping name for a category, or the input
// unchanged when the category is not mapped.
func (ct *categoryTranslator) Canonical(name string) string {
	if c, ok := ct.canonical[normalizeTitle(name)]; ok {
		return c
	}

	return name
}

// DeviceName returns the Device-side spelling of a category.
func (ct *categoryTranslator) DeviceName(name string) string {
	if n, ok := ct.device[normalizeTitle(name)]; ok {
		return n
	}

	return name
}

// HostName returns the Host-side spelling of a category.
func (ct *categoryTranslator) HostName(name string) string {
	if n, ok := ct.host[normalizeTitle(name)]; ok {
		return n
	}

	return name
}

// reconcileCategories mirrors category/list renames between the stores and
// bootstraps mappings for categories that exist on only one side. It runs
// before task reconciliation so that task actions see a consistent
// category namespace. Returns the translator for the rest of the run.
func (e *Engine) reconcileCategories(ctx context.Context) (*categoryTranslator, error) {
	deviceCats, err := e.device.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: listing device categories: %w", err)
	}

	hostLists, err := e.host.ListLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: listing host lists: %w", err)
	}

	mappings, err := e.store.AllMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: loading category mappings: %w", err)
	}

	deviceByID := make(map[string]Category, len(deviceCats))
	for _, c := range deviceCats {
		deviceByID[c.ID] = c
	}

	hostByID := make(map[string]Category, len(hostLists))
	for _, l := range hostLists {
		hostByID[l.ID] = l
	}

	translator := newCategoryTranslator()

	mappedDevice := make(map[string]bool, len(mappings))
	mappedHost := make(map[string]bool, len(mappings))

	for _, m := range mappings {
		mappedDevice[m.DeviceID] = true
		mappedHost[m.HostID] = true

		if err := e.reconcileMapping(ctx, m, deviceByID, hostByID, translator); err != nil {
			return nil, err
		}
	}

	if err := e.bootstrapDeviceCategories(ctx, deviceCats, hostLists, mappedDevice, mappedHost, translator); err != nil {
		return nil, err
	}

	if err := e.bootstrapHostLists(ctx, hostLists, mappedHost, translator); err != nil {
		return nil, err
	}

	return translator, nil
}

// reconcileMapping handles one existing mapping: detects renames on either
// side and propagates them. A pure case difference is not a rename. On a
// double rename the Device wins and the override is logged as a conflict.
func (e *Engine) reconcileMapping(
	ctx context.Context,
	m *CategoryMapping,
	deviceByID, hostByID map[string]Category,
	translator *categoryTranslator,
) error {
	deviceCat, deviceOK := deviceByID[m.DeviceID]
	hostList, hostOK := hostByID[m.HostID]

	// Both sides gone: the mapping has no referent left.
	if !deviceOK && !hostOK {
		e.logger.Info("removing orphaned category mapping", "name", m.Name)
		return e.store.DeleteMapping(ctx, m.DeviceID)
	}

	// One side gone: keep the mapping until the other side disappears too.
	if !deviceOK || !hostOK {
		translator.register(m.Name, m.Name, m.Name)
		return nil
	}

	deviceRenamed := !strings.EqualFold(deviceCat.Name, m.Name)
	hostRenamed := !strings.EqualFold(hostList.Name, m.Name)

	switch {
	case deviceRenamed && hostRenamed:
		// Device wins. The Host rename is overwritten; record the override.
		e.logger.Warn("category renamed on both sides, device wins",
			slog.String("device_name", deviceCat.Name),
			slog.String("host_name", hostList.Name),
		)

		if err := e.host.RenameList(ctx, hostList.Name, deviceCat.Name); err != nil {
			return fmt.Errorf("sync: renaming host list %q: %w", hostList.Name, err)
		}

		details := fmt.Sprintf(`{"device":%q,"host":%q,"winner":"device"}`, deviceCat.Name, hostList.Name)
		if err := e.store.LogAction(ctx, "category_rename_conflict", "", details); err != nil {
			return err
		}

		translator.register(deviceCat.Name, deviceCat.Name, deviceCat.Name, m.Name, hostList.Name)

		return e.renameMapping(ctx, m, deviceCat.Name)

	case deviceRenamed:
		e.logger.Info("propagating category rename to host",
			"old", m.Name, "new", deviceCat.Name)

		if err := e.host.RenameList(ctx, hostList.Name, deviceCat.Name); err != nil {
			return fmt.Errorf("sync: renaming host list %q: %w", hostList.Name, err)
		}

		translator.register(deviceCat.Name, deviceCat.Name, deviceCat.Name, m.Name, hostList.Name)

		return e.renameMapping(ctx, m, deviceCat.Name)

	case hostRenamed:
		e.logger.Info("propagating list rename to device",
			"old", m.Name, "new", hostList.Name)

		if err := e.device.RenameCategory(ctx, m.DeviceID, hostList.Name); err != nil {
			return fmt.Errorf("sync: renaming device category %q: %w", m.Name, err)
		}

		translator.register(hostList.Name, hostList.Name, hostList.Name, m.Name, deviceCat.Name)

		return e.renameMapping(ctx, m, hostList.Name)

	default:
		translator.register(deviceCat.Name, hostList.Name, m.Name)
		return nil
	}
}

// renameMapping persists a mapping's new shared name.
func (e *Engine) renameMapping(ctx context.Context, m *CategoryMapping, newName string) error {
	m.Name = newName

	if err := e.store.UpsertMapping(ctx, m); err != nil {
		return fmt.Errorf("sync: updating category mapping: %w", err)
	}

	return nil
}

// bootstrapDeviceCategories maps Device categories that have no mapping yet:
// a case-insensitive name match against Host lists links the two, otherwise
// a matching list is created on the Host. The Device spelling becomes the
// canonical name.
func (e *Engine) bootstrapDeviceCategories(
	ctx context.Context,
	deviceCats, hostLists []Category,
	mappedDevice, mappedHost map[string]bool,
	translator *categoryTranslator,
) error {
	hostByName := make(map[string]Category, len(hostLists))
	for _, l := range hostLists {
		if !mappedHost[l.ID] {
			hostByName[normalizeTitle(l.Name)] = l
		}
	}

	for _, cat := range deviceCats {
		if mappedDevice[cat.ID] {
			continue
		}

		hostList, ok := hostByName[normalizeTitle(cat.Name)]
		if !ok {
			hostID, err := e.host.CreateList(ctx, cat.Name)
			if err != nil {
				return fmt.Errorf("sync: creating host list %q: %w", cat.Name, err)
			}

			hostList = Category{ID: hostID, Name: cat.Name}

			e.logger.Info("created host list for device category", "name", cat.Name)
		} else {
			e.logger.Info("linked device category to host list by name",
				"device_name", cat.Name, "host_name", hostList.Name)
		}

		mappedHost[hostList.ID] = true
		translator.register(cat.Name, hostList.Name, cat.Name)

		mapping := &CategoryMapping{DeviceID: cat.ID, HostID: hostList.ID, Name: cat.Name}
		if err := e.store.UpsertMapping(ctx, mapping); err != nil {
			return fmt.Errorf("sync: recording category mapping %q: %w", cat.Name, err)
		}
	}

	return nil
}

// bootstrapHostLists mirrors bootstrapDeviceCategories for Host lists that
// remain unmapped: a matching category is created on the Device.
func (e *Engine) bootstrapHostLists(
	ctx context.Context,
	hostLists []Category,
	mappedHost map[string]bool,
	translator *categoryTranslator,
) error {
	for _, l := range hostLists {
		if mappedHost[l.ID] {
			continue
		}

		deviceID, err := e.device.CreateCategory(ctx, l.Name)
		if err != nil {
			return fmt.Errorf("sync: creating device category %q: %w", l.Name, err)
		}

		e.logger.Info("created device category for host list", "name", l.Name)

		translator.register(l.Name, l.Name, l.Name)

		mapping := &CategoryMapping{DeviceID: deviceID, HostID: l.ID, Name: l.Name}
		if err := e.store.UpsertMapping(ctx, mapping); err != nil {
			return fmt.Errorf("sync: recording category mapping %q: %w", l.Name, err)
		}
	}

	return nil
}
