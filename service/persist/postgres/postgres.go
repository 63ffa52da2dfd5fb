package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/SplitFi/go-drops/env"
	_ "github.com/lib/pq"
)

func init() {
	env.RegisterValidation("POSTGRES_HOST", "required")
	env.RegisterValidation("POSTGRES_PORT", "required")
}

type connectionParams struct {
	user     string
	password string
	dbname   string
	host     string
	port     int
}

// ConnectionOption overrides one connection parameter
type ConnectionOption func(*connectionParams)

func WithUser(user string) ConnectionOption {
	return func(p *connectionParams) { p.user = user }
}

func WithPassword(password string) ConnectionOption {
	return func(p *connectionParams) { p.password = password }
}

func WithDBName(dbname string) ConnectionOption {
	return func(p *connectionParams) { p.dbname = dbname }
}

func WithHost(host string) ConnectionOption {
	return func(p *connectionParams) { p.host = host }
}

func WithPort(port int) ConnectionOption {
	return func(p *connectionParams) { p.port = port }
}

func newConnectionParams() connectionParams {
	return connectionParams{
		user:     env.GetString("POSTGRES_USER"),
		password: env.GetString("POSTGRES_PASSWORD"),
		dbname:   env.GetString("POSTGRES_DB"),
		host:     env.GetString("POSTGRES_HOST"),
		port:     env.GetInt("POSTGRES_PORT"),
	}
}

func (p connectionParams) toConnectionString() string {
	parts := []string{"sslmode=disable"}
	if p.user != "" {
		parts = append(parts, "user="+p.user)
	}
	if p.password != "" {
		parts = append(parts, "password="+p.password)
	}
	if p.dbname != "" {
		parts = append(parts, "dbname="+p.dbname)
	}
	if p.host != "" {
		parts = append(parts, "host="+p.host)
	}
	if p.port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", p.port))
	}
	return strings.Join(parts, " ")
}

// NewClient creates a new postgres client
func NewClient(opts ...ConnectionOption) (*sql.DB, error) {
	params := newConnectionParams()
	for _, opt := range opts {
		opt(&params)
	}

	db, err := sql.Open("postgres", params.toConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(50)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// MustCreateClient panics when the client cannot be created
func MustCreateClient(opts ...ConnectionOption) *sql.DB {
	db, err := NewClient(opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// Repositories is the set of postgres-backed repositories
type Repositories struct {
	DropRepository       *DropRepository
	RoleRepository       *RoleRepository
	MintRecordRepository *MintRecordRepository
}

// NewRepositories creates the full set of repositories over one client
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		DropRepository:       NewDropRepository(db),
		RoleRepository:       NewRoleRepository(db),
		MintRecordRepository: NewMintRecordRepository(db),
	}
}

func checkNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
