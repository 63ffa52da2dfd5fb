package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/SplitFi/go-drops/service/persist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// DropRepository represents a postgres repository for drops
type DropRepository struct {
	db                      *sql.DB
	createStmt              *sql.Stmt
	getByIDStmt             *sql.Stmt
	getByExternalIDStmt     *sql.Stmt
	countStmt               *sql.Stmt
	updateSupplyStmt        *sql.Stmt
	updateSaleWindowStmt    *sql.Stmt
	updateAllowListRootStmt *sql.Stmt
	updateRightHolderStmt   *sql.Stmt
	reserveStmt             *sql.Stmt
	releaseStmt             *sql.Stmt
	getPrivateMintedStmt    *sql.Stmt
	addPrivateMintedStmt    *sql.Stmt
	subPrivateMintedStmt    *sql.Stmt
}

// NewDropRepository creates a new DropRepository
func NewDropRepository(db *sql.DB) *DropRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The ID subselect keeps drop IDs dense and in creation order; the
	// insert serializes on the external ID unique index.
	createStmt, err := db.PrepareContext(ctx, `INSERT INTO drops (ID,VERSION,CREATED_AT,LAST_UPDATED,EXTERNAL_ID,PRICE,PAYMENT_ASSET,SUPPLY,ROYALTY_SHARE,SOLD,SALE_OPEN,SALE_CLOSE,PRIVATE_SALE_OPEN,PRIVATE_SALE_MAX_MINT,ALLOW_LIST_ROOT,OWNER_ADDRESS,ASSET_COLLECTION) SELECT COALESCE(MAX(ID)+1,0),$1,now(),now(),$2,$3,$4,$5,$6,0,$7,$8,$9,$10,$11,$12,$13 FROM drops RETURNING ID;`)
	checkNoErr(err)

	getByIDStmt, err := db.PrepareContext(ctx, `SELECT ID,VERSION,CREATED_AT,LAST_UPDATED,EXTERNAL_ID,PRICE,PAYMENT_ASSET,SUPPLY,ROYALTY_SHARE,SOLD,SALE_OPEN,SALE_CLOSE,PRIVATE_SALE_OPEN,PRIVATE_SALE_MAX_MINT,ALLOW_LIST_ROOT,OWNER_ADDRESS,ASSET_COLLECTION FROM drops WHERE ID = $1;`)
	checkNoErr(err)

	getByExternalIDStmt, err := db.PrepareContext(ctx, `SELECT ID,VERSION,CREATED_AT,LAST_UPDATED,EXTERNAL_ID,PRICE,PAYMENT_ASSET,SUPPLY,ROYALTY_SHARE,SOLD,SALE_OPEN,SALE_CLOSE,PRIVATE_SALE_OPEN,PRIVATE_SALE_MAX_MINT,ALLOW_LIST_ROOT,OWNER_ADDRESS,ASSET_COLLECTION FROM drops WHERE EXTERNAL_ID = $1;`)
	checkNoErr(err)

	countStmt, err := db.PrepareContext(ctx, `SELECT COUNT(*) FROM drops;`)
	checkNoErr(err)

	updateSupplyStmt, err := db.PrepareContext(ctx, `UPDATE drops SET SUPPLY = $2, LAST_UPDATED = now() WHERE ID = $1 AND $2 > 0 AND $2 >= SOLD;`)
	checkNoErr(err)

	updateSaleWindowStmt, err := db.PrepareContext(ctx, `UPDATE drops SET SALE_OPEN = $2, SALE_CLOSE = $3, PRIVATE_SALE_OPEN = $4, PRIVATE_SALE_MAX_MINT = $5, LAST_UPDATED = now() WHERE ID = $1;`)
	checkNoErr(err)

	updateAllowListRootStmt, err := db.PrepareContext(ctx, `UPDATE drops SET ALLOW_LIST_ROOT = $2, LAST_UPDATED = now() WHERE ID = $1;`)
	checkNoErr(err)

	updateRightHolderStmt, err := db.PrepareContext(ctx, `UPDATE drops SET OWNER_ADDRESS = $2, LAST_UPDATED = now() WHERE ID = $1;`)
	checkNoErr(err)

	// The single guarded UPDATE is the linearization point for oversell.
	reserveStmt, err := db.PrepareContext(ctx, `UPDATE drops SET SOLD = SOLD + $2, LAST_UPDATED = now() WHERE ID = $1 AND ASSET_COLLECTION = $3 AND SOLD + $2 <= SUPPLY RETURNING SOLD - $2;`)
	checkNoErr(err)

	releaseStmt, err := db.PrepareContext(ctx, `UPDATE drops SET SOLD = GREATEST(SOLD - $2, 0), LAST_UPDATED = now() WHERE ID = $1 AND ASSET_COLLECTION = $3;`)
	checkNoErr(err)

	getPrivateMintedStmt, err := db.PrepareContext(ctx, `SELECT COALESCE(MAX(MINTED),0) FROM drop_private_mints WHERE DROP_ID = $1 AND ADDRESS = $2;`)
	checkNoErr(err)

	addPrivateMintedStmt, err := db.PrepareContext(ctx, `INSERT INTO drop_private_mints (DROP_ID,ADDRESS,MINTED) VALUES ($1,$2,$3) ON CONFLICT (DROP_ID,ADDRESS) DO UPDATE SET MINTED = drop_private_mints.MINTED + $3;`)
	checkNoErr(err)

	subPrivateMintedStmt, err := db.PrepareContext(ctx, `UPDATE drop_private_mints SET MINTED = GREATEST(MINTED - $3, 0) WHERE DROP_ID = $1 AND ADDRESS = $2;`)
	checkNoErr(err)

	return &DropRepository{
		db:                      db,
		createStmt:              createStmt,
		getByIDStmt:             getByIDStmt,
		getByExternalIDStmt:     getByExternalIDStmt,
		countStmt:               countStmt,
		updateSupplyStmt:        updateSupplyStmt,
		updateSaleWindowStmt:    updateSaleWindowStmt,
		updateAllowListRootStmt: updateAllowListRootStmt,
		updateRightHolderStmt:   updateRightHolderStmt,
		reserveStmt:             reserveStmt,
		releaseStmt:             releaseStmt,
		getPrivateMintedStmt:    getPrivateMintedStmt,
		addPrivateMintedStmt:    addPrivateMintedStmt,
		subPrivateMintedStmt:    subPrivateMintedStmt,
	}
}

// Create inserts a new drop with the next dense ID and a zero sold counter
func (d *DropRepository) Create(pCtx context.Context, pDrop persist.Drop) (persist.DropID, error) {
	var paymentAsset interface{}
	if pDrop.Token.PaymentAsset != nil {
		asset, err := json.Marshal(pDrop.Token.PaymentAsset)
		if err != nil {
			return 0, err
		}
		paymentAsset = asset
	}

	var id persist.DropID
	err := d.createStmt.QueryRowContext(pCtx, persist.NullInt32(0), pDrop.ExternalID, int64(pDrop.Token.Price), paymentAsset, int64(pDrop.Token.Supply), int64(pDrop.Token.RoyaltySharePerToken), pDrop.SaleOpen, pDrop.SaleClose, pDrop.PrivateSaleOpen, int64(pDrop.PrivateSaleMaxMint), pDrop.AllowListRoot.Bytes(), pDrop.Owner, pDrop.AssetCollection).Scan(&id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return 0, persist.ErrDropConflict{ExternalID: pDrop.ExternalID}
		}
		return 0, err
	}
	return id, nil
}

// GetByID retrieves a drop by its ID
func (d *DropRepository) GetByID(pCtx context.Context, pID persist.DropID) (persist.Drop, error) {
	drop, err := scanDrop(d.getByIDStmt.QueryRowContext(pCtx, pID))
	if err != nil {
		if err == sql.ErrNoRows {
			return persist.Drop{}, persist.ErrDropNotFoundByID{ID: pID}
		}
		return persist.Drop{}, err
	}
	return drop, nil
}

// GetByExternalID retrieves a drop by its external ID. Unknown external IDs
// fail rather than defaulting to drop 0.
func (d *DropRepository) GetByExternalID(pCtx context.Context, pExternalID string) (persist.Drop, error) {
	drop, err := scanDrop(d.getByExternalIDStmt.QueryRowContext(pCtx, pExternalID))
	if err != nil {
		if err == sql.ErrNoRows {
			return persist.Drop{}, persist.ErrDropNotFoundByExternalID{ExternalID: pExternalID}
		}
		return persist.Drop{}, err
	}
	return drop, nil
}

// Count returns the number of drops ever created
func (d *DropRepository) Count(pCtx context.Context) (uint64, error) {
	var count int64
	if err := d.countStmt.QueryRowContext(pCtx).Scan(&count); err != nil {
		return 0, err
	}
	return uint64(count), nil
}

// UpdateSupply overwrites a drop's supply; the guard against zero supply
// and supply below the sold counter rides the UPDATE itself
func (d *DropRepository) UpdateSupply(pCtx context.Context, pID persist.DropID, pSupply uint64) error {
	res, err := d.updateSupplyStmt.ExecContext(pCtx, pID, int64(pSupply))
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		drop, err := d.GetByID(pCtx, pID)
		if err != nil {
			return err
		}
		return persist.ErrInvalidSupply{Supply: pSupply, Sold: drop.Sold}
	}
	return nil
}

// UpdateSaleWindow unconditionally overwrites all four window fields
func (d *DropRepository) UpdateSaleWindow(pCtx context.Context, pID persist.DropID, pUpdate persist.DropSaleWindowUpdateInput) error {
	res, err := d.updateSaleWindowStmt.ExecContext(pCtx, pID, pUpdate.SaleOpen, pUpdate.SaleClose, pUpdate.PrivateSaleOpen, int64(pUpdate.PrivateSaleMaxMint))
	if err != nil {
		return err
	}
	return requireRow(res, pID)
}

// UpdateAllowListRoot unconditionally overwrites the committed root
func (d *DropRepository) UpdateAllowListRoot(pCtx context.Context, pID persist.DropID, pRoot common.Hash) error {
	res, err := d.updateAllowListRootStmt.ExecContext(pCtx, pID, pRoot.Bytes())
	if err != nil {
		return err
	}
	return requireRow(res, pID)
}

// UpdateRightHolder overwrites the drop's right holder
func (d *DropRepository) UpdateRightHolder(pCtx context.Context, pID persist.DropID, pOwner persist.EthereumAddress) error {
	res, err := d.updateRightHolderStmt.ExecContext(pCtx, pID, pOwner)
	if err != nil {
		return err
	}
	return requireRow(res, pID)
}

// Reserve atomically bounds-checks and increments the sold counter,
// returning its value before the increment
func (d *DropRepository) Reserve(pCtx context.Context, pID persist.DropID, pQuantity uint64, pCaller persist.EthereumAddress) (uint64, error) {
	if pQuantity > math.MaxInt64 {
		drop, err := d.GetByID(pCtx, pID)
		if err != nil {
			return 0, err
		}
		return 0, persist.ErrNotEnoughTokensAvailable{ID: pID, Requested: pQuantity, Remaining: drop.Remaining()}
	}

	var soldBefore int64
	err := d.reserveStmt.QueryRowContext(pCtx, pID, int64(pQuantity), pCaller).Scan(&soldBefore)
	if err == nil {
		return uint64(soldBefore), nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	// The guarded update matched nothing; look at the drop to say why.
	drop, err := d.GetByID(pCtx, pID)
	if err != nil {
		return 0, err
	}
	if drop.AssetCollection.String() != pCaller.String() {
		return 0, persist.ErrUnauthorizedUpdate{ID: pID, Caller: pCaller}
	}
	return 0, persist.ErrNotEnoughTokensAvailable{ID: pID, Requested: pQuantity, Remaining: drop.Remaining()}
}

// Release undoes a prior Reserve as part of mint rollback
func (d *DropRepository) Release(pCtx context.Context, pID persist.DropID, pQuantity uint64, pCaller persist.EthereumAddress) error {
	res, err := d.releaseStmt.ExecContext(pCtx, pID, int64(pQuantity), pCaller)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := d.GetByID(pCtx, pID); err != nil {
			return err
		}
		return persist.ErrUnauthorizedUpdate{ID: pID, Caller: pCaller}
	}
	return nil
}

// GetPrivateMinted returns the caller's cumulative private-phase mints for a drop
func (d *DropRepository) GetPrivateMinted(pCtx context.Context, pID persist.DropID, pAddr persist.EthereumAddress) (uint64, error) {
	var minted int64
	if err := d.getPrivateMintedStmt.QueryRowContext(pCtx, pID, pAddr).Scan(&minted); err != nil {
		return 0, err
	}
	return uint64(minted), nil
}

// AddPrivateMinted increments the caller's private-phase mint count
func (d *DropRepository) AddPrivateMinted(pCtx context.Context, pID persist.DropID, pAddr persist.EthereumAddress, pQuantity uint64) error {
	_, err := d.addPrivateMintedStmt.ExecContext(pCtx, pID, pAddr, int64(pQuantity))
	return err
}

// ReleasePrivateMinted undoes a prior AddPrivateMinted as part of mint rollback
func (d *DropRepository) ReleasePrivateMinted(pCtx context.Context, pID persist.DropID, pAddr persist.EthereumAddress, pQuantity uint64) error {
	_, err := d.subPrivateMintedStmt.ExecContext(pCtx, pID, pAddr, int64(pQuantity))
	return err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanDrop(row scannable) (persist.Drop, error) {
	var drop persist.Drop
	var price, supply, royalty, privateMax int64
	var paymentAsset []byte
	err := row.Scan(&drop.ID, &drop.Version, &drop.CreationTime, &drop.LastUpdated, &drop.ExternalID, &price, &paymentAsset, &supply, &royalty, &drop.Sold, &drop.SaleOpen, &drop.SaleClose, &drop.PrivateSaleOpen, &privateMax, &drop.AllowListRoot, &drop.Owner, &drop.AssetCollection)
	if err != nil {
		return persist.Drop{}, err
	}
	drop.Token.Price = uint64(price)
	drop.Token.Supply = uint64(supply)
	drop.Token.RoyaltySharePerToken = uint64(royalty)
	drop.PrivateSaleMaxMint = uint64(privateMax)
	if len(paymentAsset) > 0 {
		var asset persist.PaymentAsset
		if err := json.Unmarshal(paymentAsset, &asset); err != nil {
			return persist.Drop{}, err
		}
		drop.Token.PaymentAsset = &asset
	}
	return drop, nil
}

func requireRow(res sql.Result, id persist.DropID) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return persist.ErrDropNotFoundByID{ID: id}
	}
	return nil
}
