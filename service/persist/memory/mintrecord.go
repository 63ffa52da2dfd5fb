package memory

import (
	"context"
	"sync"
	"time"

	"github.com/SplitFi/go-drops/service/persist"
)

// MintRecordRepository is an in-process implementation of persist.MintRecordRepository
type MintRecordRepository struct {
	mu         sync.Mutex
	byUnit     map[persist.UnitID]persist.MintRecord
	byExternal map[string]persist.UnitID
}

// NewMintRecordRepository creates an empty in-memory mint record repository
func NewMintRecordRepository() *MintRecordRepository {
	return &MintRecordRepository{
		byUnit:     map[persist.UnitID]persist.MintRecord{},
		byExternal: map[string]persist.UnitID{},
	}
}

// Create binds a unit to its drop, and to its external ID when one is
// supplied. A duplicate external ID fails with ErrPrintConflict.
func (r *MintRecordRepository) Create(ctx context.Context, record persist.MintRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.ExternalID.String() != "" {
		if _, ok := r.byExternal[record.ExternalID.String()]; ok {
			return persist.ErrPrintConflict{ExternalID: record.ExternalID.String()}
		}
	}
	record.CreationTime = persist.CreationTime(time.Now())
	r.byUnit[record.UnitID] = record
	if record.ExternalID.String() != "" {
		r.byExternal[record.ExternalID.String()] = record.UnitID
	}
	return nil
}

// GetByUnitID returns the mint record for a unit
func (r *MintRecordRepository) GetByUnitID(ctx context.Context, unit persist.UnitID) (persist.MintRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.byUnit[unit]
	if !ok {
		return persist.MintRecord{}, persist.ErrMintRecordNotFound{UnitID: unit}
	}
	return record, nil
}

// GetByExternalID returns the mint record bound to a per-unit external ID
func (r *MintRecordRepository) GetByExternalID(ctx context.Context, externalID string) (persist.MintRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	unit, ok := r.byExternal[externalID]
	if !ok {
		return persist.MintRecord{}, persist.ErrMintRecordNotFound{}
	}
	return r.byUnit[unit], nil
}

// ExistsByExternalID answers whether an external ID is already bound to a unit
func (r *MintRecordRepository) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byExternal[externalID]
	return ok, nil
}

// DeleteByUnitID removes a record as part of mint rollback
func (r *MintRecordRepository) DeleteByUnitID(ctx context.Context, unit persist.UnitID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.byUnit[unit]
	if !ok {
		return persist.ErrMintRecordNotFound{UnitID: unit}
	}
	delete(r.byUnit, unit)
	if record.ExternalID.String() != "" {
		delete(r.byExternal, record.ExternalID.String())
	}
	return nil
}
