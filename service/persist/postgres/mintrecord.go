package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/SplitFi/go-drops/service/persist"
	"github.com/lib/pq"
)

// MintRecordRepository represents a postgres repository for mint records
type MintRecordRepository struct {
	db                   *sql.DB
	createStmt           *sql.Stmt
	getByUnitStmt        *sql.Stmt
	getByExternalIDStmt  *sql.Stmt
	existsExternalIDStmt *sql.Stmt
	deleteByUnitStmt     *sql.Stmt
}

// NewMintRecordRepository creates a new MintRecordRepository
func NewMintRecordRepository(db *sql.DB) *MintRecordRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	createStmt, err := db.PrepareContext(ctx, `INSERT INTO mint_records (UNIT_ID,DROP_ID,EXTERNAL_ID,SERIAL,RECIPIENT,CREATED_AT) VALUES ($1,$2,NULLIF($3,''),$4,$5,now());`)
	checkNoErr(err)

	getByUnitStmt, err := db.PrepareContext(ctx, `SELECT UNIT_ID,DROP_ID,COALESCE(EXTERNAL_ID,''),SERIAL,RECIPIENT,CREATED_AT FROM mint_records WHERE UNIT_ID = $1;`)
	checkNoErr(err)

	getByExternalIDStmt, err := db.PrepareContext(ctx, `SELECT UNIT_ID,DROP_ID,COALESCE(EXTERNAL_ID,''),SERIAL,RECIPIENT,CREATED_AT FROM mint_records WHERE EXTERNAL_ID = $1;`)
	checkNoErr(err)

	existsExternalIDStmt, err := db.PrepareContext(ctx, `SELECT EXISTS(SELECT 1 FROM mint_records WHERE EXTERNAL_ID = $1);`)
	checkNoErr(err)

	deleteByUnitStmt, err := db.PrepareContext(ctx, `DELETE FROM mint_records WHERE UNIT_ID = $1;`)
	checkNoErr(err)

	return &MintRecordRepository{
		db:                   db,
		createStmt:           createStmt,
		getByUnitStmt:        getByUnitStmt,
		getByExternalIDStmt:  getByExternalIDStmt,
		existsExternalIDStmt: existsExternalIDStmt,
		deleteByUnitStmt:     deleteByUnitStmt,
	}
}

// Create binds a unit to its drop; a duplicate external ID fails with ErrPrintConflict
func (m *MintRecordRepository) Create(pCtx context.Context, pRecord persist.MintRecord) error {
	_, err := m.createStmt.ExecContext(pCtx, pRecord.UnitID, pRecord.DropID, pRecord.ExternalID.String(), int64(pRecord.Serial), pRecord.Recipient)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return persist.ErrPrintConflict{ExternalID: pRecord.ExternalID.String()}
		}
		return err
	}
	return nil
}

// GetByUnitID returns the mint record for a unit
func (m *MintRecordRepository) GetByUnitID(pCtx context.Context, pUnit persist.UnitID) (persist.MintRecord, error) {
	record, err := scanMintRecord(m.getByUnitStmt.QueryRowContext(pCtx, pUnit))
	if err != nil {
		if err == sql.ErrNoRows {
			return persist.MintRecord{}, persist.ErrMintRecordNotFound{UnitID: pUnit}
		}
		return persist.MintRecord{}, err
	}
	return record, nil
}

// GetByExternalID returns the mint record bound to a per-unit external ID
func (m *MintRecordRepository) GetByExternalID(pCtx context.Context, pExternalID string) (persist.MintRecord, error) {
	record, err := scanMintRecord(m.getByExternalIDStmt.QueryRowContext(pCtx, pExternalID))
	if err != nil {
		if err == sql.ErrNoRows {
			return persist.MintRecord{}, persist.ErrMintRecordNotFound{}
		}
		return persist.MintRecord{}, err
	}
	return record, nil
}

// ExistsByExternalID answers whether an external ID is already bound to a unit
func (m *MintRecordRepository) ExistsByExternalID(pCtx context.Context, pExternalID string) (bool, error) {
	var exists bool
	if err := m.existsExternalIDStmt.QueryRowContext(pCtx, pExternalID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// DeleteByUnitID removes a record as part of mint rollback
func (m *MintRecordRepository) DeleteByUnitID(pCtx context.Context, pUnit persist.UnitID) error {
	res, err := m.deleteByUnitStmt.ExecContext(pCtx, pUnit)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return persist.ErrMintRecordNotFound{UnitID: pUnit}
	}
	return nil
}

func scanMintRecord(row scannable) (persist.MintRecord, error) {
	var record persist.MintRecord
	var serial int64
	err := row.Scan(&record.UnitID, &record.DropID, &record.ExternalID, &serial, &record.Recipient, &record.CreationTime)
	if err != nil {
		return persist.MintRecord{}, err
	}
	record.Serial = uint64(serial)
	return record, nil
}
