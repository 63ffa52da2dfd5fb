package persist

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/segmentio/ksuid"
)

// ZeroAddress is the all-zero Ethereum address
const ZeroAddress EthereumAddress = "0x0000000000000000000000000000000000000000"

// DBID represents a database ID
type DBID string

// GenerateID generates an application-wide unique ID
func GenerateID() DBID {
	return DBID(ksuid.New().String())
}

func (d DBID) String() string {
	return string(d)
}

// Value implements the database/sql/driver Valuer interface for the DBID type
func (d DBID) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements the database/sql Scanner interface for the DBID type
func (d *DBID) Scan(i interface{}) error {
	if i == nil {
		*d = DBID("")
		return nil
	}
	*d = DBID(i.(string))
	return nil
}

// CreationTime represents the time a record was created
type CreationTime time.Time

// Time returns the CreationTime as a time.Time
func (c CreationTime) Time() time.Time {
	return time.Time(c)
}

// MarshalJSON implements the json.Marshaller interface for the CreationTime type
func (c CreationTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Time())
}

// UnmarshalJSON implements the json.Unmarshaller interface for the CreationTime type
func (c *CreationTime) UnmarshalJSON(b []byte) error {
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	*c = CreationTime(t)
	return nil
}

// Value implements the database/sql/driver Valuer interface for the CreationTime type
func (c CreationTime) Value() (driver.Value, error) {
	return c.Time(), nil
}

// Scan implements the database/sql Scanner interface for the CreationTime type
func (c *CreationTime) Scan(i interface{}) error {
	if i == nil {
		*c = CreationTime{}
		return nil
	}
	*c = CreationTime(i.(time.Time))
	return nil
}

// LastUpdatedTime represents the time a record was last updated
type LastUpdatedTime time.Time

// Time returns the LastUpdatedTime as a time.Time
func (l LastUpdatedTime) Time() time.Time {
	return time.Time(l)
}

// MarshalJSON implements the json.Marshaller interface for the LastUpdatedTime type
func (l LastUpdatedTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Time())
}

// UnmarshalJSON implements the json.Unmarshaller interface for the LastUpdatedTime type
func (l *LastUpdatedTime) UnmarshalJSON(b []byte) error {
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	*l = LastUpdatedTime(t)
	return nil
}

// Value implements the database/sql/driver Valuer interface for the LastUpdatedTime type
func (l LastUpdatedTime) Value() (driver.Value, error) {
	return l.Time(), nil
}

// Scan implements the database/sql Scanner interface for the LastUpdatedTime type
func (l *LastUpdatedTime) Scan(i interface{}) error {
	if i == nil {
		*l = LastUpdatedTime{}
		return nil
	}
	*l = LastUpdatedTime(i.(time.Time))
	return nil
}

// NullString represents a string that may be null in the DB
type NullString string

func (n NullString) String() string {
	return string(n)
}

// Value implements the database/sql/driver Valuer interface for the NullString type
func (n NullString) Value() (driver.Value, error) {
	if n.String() == "" {
		return "", nil
	}
	return strings.ToValidUTF8(n.String(), ""), nil
}

// Scan implements the database/sql Scanner interface for the NullString type
func (n *NullString) Scan(value interface{}) error {
	if value == nil {
		*n = NullString("")
		return nil
	}
	*n = NullString(value.(string))
	return nil
}

// NullInt32 represents an int32 that may be null in the DB
type NullInt32 int32

// Int32 returns the int32 value of the NullInt32
func (n NullInt32) Int32() int32 {
	return int32(n)
}

// Value implements the database/sql/driver Valuer interface for the NullInt32 type
func (n NullInt32) Value() (driver.Value, error) {
	return int64(n.Int32()), nil
}

// Scan implements the database/sql Scanner interface for the NullInt32 type
func (n *NullInt32) Scan(value interface{}) error {
	if value == nil {
		*n = NullInt32(0)
		return nil
	}
	*n = NullInt32(value.(int64))
	return nil
}

// NullInt64 represents an int64 that may be null in the DB
type NullInt64 int64

// Int64 returns the int64 value of the NullInt64
func (n NullInt64) Int64() int64 {
	return int64(n)
}

// Value implements the database/sql/driver Valuer interface for the NullInt64 type
func (n NullInt64) Value() (driver.Value, error) {
	return n.Int64(), nil
}

// Scan implements the database/sql Scanner interface for the NullInt64 type
func (n *NullInt64) Scan(value interface{}) error {
	if value == nil {
		*n = NullInt64(0)
		return nil
	}
	*n = NullInt64(value.(int64))
	return nil
}

// NullBool represents a bool that may be null in the DB
type NullBool bool

// Bool returns the bool value of the NullBool
func (n NullBool) Bool() bool {
	return bool(n)
}

// Value implements the database/sql/driver Valuer interface for the NullBool type
func (n NullBool) Value() (driver.Value, error) {
	return n.Bool(), nil
}

// Scan implements the database/sql Scanner interface for the NullBool type
func (n *NullBool) Scan(value interface{}) error {
	if value == nil {
		*n = NullBool(false)
		return nil
	}
	*n = NullBool(value.(bool))
	return nil
}

// EthereumAddress represents an Ethereum address
type EthereumAddress string

func (a EthereumAddress) String() string {
	return normalizeAddress(strings.ToLower(string(a)))
}

// Address returns the ethereum address byte array
func (a EthereumAddress) Address() common.Address {
	return common.HexToAddress(a.String())
}

// IsZero returns true when the address is empty or the zero address
func (a EthereumAddress) IsZero() bool {
	return a.String() == "" || a.String() == ZeroAddress.String()
}

// Value implements the database/sql/driver Valuer interface for the address type
func (a EthereumAddress) Value() (driver.Value, error) {
	return a.String(), nil
}

// MarshalJSON implements the json.Marshaller interface for the address type
func (a EthereumAddress) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements the json.Unmarshaller interface for the address type
func (a *EthereumAddress) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*a = EthereumAddress(normalizeAddress(strings.ToLower(s)))
	return nil
}

// Scan implements the database/sql Scanner interface
func (a *EthereumAddress) Scan(i interface{}) error {
	if i == nil {
		*a = EthereumAddress("")
		return nil
	}
	if it, ok := i.(string); ok {
		*a = EthereumAddress(it)
		return nil
	}
	*a = EthereumAddress(i.([]uint8))
	return nil
}

func normalizeAddress(address string) string {
	withoutPrefix := strings.TrimPrefix(address, "0x")
	if len(withoutPrefix) < 40 {
		return ""
	}
	return "0x" + withoutPrefix[len(withoutPrefix)-40:]
}

// ErrInvalidAddress is returned when an entry point receives an empty or
// zero address where a real one is required
type ErrInvalidAddress struct {
	Address EthereumAddress
}

func (e ErrInvalidAddress) Error() string {
	return fmt.Sprintf("invalid address: %s", e.Address)
}
