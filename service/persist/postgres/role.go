package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/SplitFi/go-drops/service/persist"
)

// RoleRepository represents a postgres repository for role membership
type RoleRepository struct {
	db            *sql.DB
	grantStmt     *sql.Stmt
	revokeStmt    *sql.Stmt
	hasStmt       *sql.Stmt
	byAddressStmt *sql.Stmt
}

// NewRoleRepository creates a new RoleRepository
func NewRoleRepository(db *sql.DB) *RoleRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grantStmt, err := db.PrepareContext(ctx, `INSERT INTO roles (ADDRESS,ROLE,CREATED_AT) VALUES ($1,$2,now()) ON CONFLICT (ADDRESS,ROLE) DO NOTHING;`)
	checkNoErr(err)

	revokeStmt, err := db.PrepareContext(ctx, `DELETE FROM roles WHERE ADDRESS = $1 AND ROLE = $2;`)
	checkNoErr(err)

	hasStmt, err := db.PrepareContext(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE ADDRESS = $1 AND ROLE = $2);`)
	checkNoErr(err)

	byAddressStmt, err := db.PrepareContext(ctx, `SELECT ROLE FROM roles WHERE ADDRESS = $1;`)
	checkNoErr(err)

	return &RoleRepository{
		db:            db,
		grantStmt:     grantStmt,
		revokeStmt:    revokeStmt,
		hasStmt:       hasStmt,
		byAddressStmt: byAddressStmt,
	}
}

// Grant adds role membership for an address
func (r *RoleRepository) Grant(pCtx context.Context, pRole persist.Role, pAddr persist.EthereumAddress) error {
	if !pRole.IsValid() {
		return persist.ErrInvalidRole{Role: pRole}
	}
	_, err := r.grantStmt.ExecContext(pCtx, pAddr, pRole)
	return err
}

// Revoke removes role membership for an address
func (r *RoleRepository) Revoke(pCtx context.Context, pRole persist.Role, pAddr persist.EthereumAddress) error {
	if !pRole.IsValid() {
		return persist.ErrInvalidRole{Role: pRole}
	}
	_, err := r.revokeStmt.ExecContext(pCtx, pAddr, pRole)
	return err
}

// Has answers a role membership query
func (r *RoleRepository) Has(pCtx context.Context, pRole persist.Role, pAddr persist.EthereumAddress) (bool, error) {
	var has bool
	if err := r.hasStmt.QueryRowContext(pCtx, pAddr, pRole).Scan(&has); err != nil {
		return false, err
	}
	return has, nil
}

// GetByAddress returns all roles held by an address
func (r *RoleRepository) GetByAddress(pCtx context.Context, pAddr persist.EthereumAddress) (persist.RoleList, error) {
	rows, err := r.byAddressStmt.QueryContext(pCtx, pAddr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := persist.RoleList{}
	for rows.Next() {
		var role persist.Role
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
