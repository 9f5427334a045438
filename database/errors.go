/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ConfigErrorReason tells why a configuration field was rejected.
type ConfigErrorReason string

const (
	ReasonRequired   ConfigErrorReason = "required"
	ReasonUnknown    ConfigErrorReason = "unknown"
	ReasonEmpty      ConfigErrorReason = "empty"
	ReasonWrongType  ConfigErrorReason = "wrong-type"
	ReasonOutOfRange ConfigErrorReason = "out-of-range"
)

// ConfigError reports the first configuration field that failed validation.
// Nested fields use a dotted path, e.g. "options.port".
type ConfigError struct {
	Field  string
	Reason ConfigErrorReason
	Detail string
}

func (e *ConfigError) Error() string {
	switch e.Reason {
	case ReasonRequired:
		return fmt.Sprintf("%q is required", e.Field)
	case ReasonUnknown:
		return fmt.Sprintf("%q is not allowed", e.Field)
	case ReasonEmpty:
		return fmt.Sprintf("%q is not allowed to be empty", e.Field)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("%q %s", e.Field, e.Detail)
		}
		return fmt.Sprintf("%q is invalid", e.Field)
	}
}

// BootstrapDbMissingError is returned when the target database does not
// exist and no bootstrap database is configured to create it from.
type BootstrapDbMissingError struct {
	Database string
}

func (e *BootstrapDbMissingError) Error() string {
	return `"vinkaDB" must be defined when trying to create application database`
}

// ConnectionError wraps any failure to connect, query or create a database.
// Its message is the message of the wrapped error.
type ConnectionError struct {
	Database string
	Err      error
}

func (e *ConnectionError) Error() string {
	return e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func newConnectionError(database string, err error) error {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConnectionError{Database: database, Err: err}
}

// IsMissingDatabase reports whether err says that the database named db does
// not exist. Only the message is inspected: it must contain `"<db>" does not
// exist`.
func IsMissingDatabase(err error, db string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), `"`+db+`" does not exist`)
}

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
	NoDatabaseErr
	ExistDatabaseErr
	AuthFailedErr
)

func (e SQLError) String() string {
	switch e {
	case NoRowsErr:
		return "no_rows"
	case NoIndexErr:
		return "no_index"
	case NoColumnErr:
		return "no_column"
	case ExistIndexErr:
		return "exist_index"
	case ExistColumnErr:
		return "exist_column"
	case NoTableErr:
		return "no_table"
	case ExistTableErr:
		return "exist_table"
	case DuplicateKeyErr:
		return "duplicate_key"
	case NotNullViolationErr:
		return "not_null_violation"
	case ForeignKeyViolationErr:
		return "foreign_key_violation"
	case CheckConstraintViolationErr:
		return "check_constraint_violation"
	case DataTruncatedErr:
		return "data_truncated"
	case InvalidTypeCastErr:
		return "invalid_type_cast"
	case NoDatabaseErr:
		return "no_database"
	case ExistDatabaseErr:
		return "exist_database"
	case AuthFailedErr:
		return "auth_failed"
	default:
		return "unknown"
	}
}

// IsSqlError classifies a driver error. The first result is false when err
// does not look like a database error at all. It is exported for callers
// classifying errors of their own queries: pgx, lib/pq and MySQL driver
// errors are read by code, anything else by message. The connector only
// uses it to spot a concurrently created database.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true, classifySQLState(pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true, classifySQLState(string(pqErr.Code))
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1049:
			return true, NoDatabaseErr
		case 1007:
			return true, ExistDatabaseErr
		case 1045:
			return true, AuthFailedErr
		case 1091:
			return true, NoIndexErr
		case 1054:
			return true, NoColumnErr
		case 1061:
			return true, ExistIndexErr
		case 1060:
			return true, ExistColumnErr
		case 1062:
			return true, DuplicateKeyErr
		case 1048:
			return true, NotNullViolationErr
		case 1216, 1217:
			return true, ForeignKeyViolationErr
		case 3819:
			return true, CheckConstraintViolationErr
		case 1265:
			return true, DataTruncatedErr
		default:
			return true, UnknownErr
		}
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "sqlstate 3d000") ||
		strings.Contains(s, "database") && strings.Contains(s, "does not exist"):
		return true, NoDatabaseErr
	case strings.Contains(s, "sqlstate 42p04") ||
		strings.Contains(s, "database") && strings.Contains(s, "already exists"):
		return true, ExistDatabaseErr
	case strings.Contains(s, "sqlstate 28p01") ||
		strings.Contains(s, "password authentication failed"):
		return true, AuthFailedErr
	case strings.Contains(s, "sqlstate 42703") ||
		strings.Contains(s, "undefined column") ||
		strings.Contains(s, "no such column"):
		return true, NoColumnErr
	case strings.Contains(s, "sqlstate 42p01") ||
		strings.Contains(s, "undefined table") ||
		strings.Contains(s, "no such table"):
		return true, NoTableErr
	case strings.Contains(s, "already exists") && strings.Contains(s, "index"):
		return true, ExistIndexErr
	case strings.Contains(s, "already exists") &&
		(strings.Contains(s, "table") || strings.Contains(s, "relation")):
		return true, ExistTableErr
	case strings.Contains(s, "duplicate key value") ||
		strings.Contains(s, "unique constraint failed") ||
		strings.Contains(s, "sqlstate 23505"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not-null constraint") ||
		strings.Contains(s, "sqlstate 23502") ||
		strings.Contains(s, "not null constraint failed"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key violation") ||
		strings.Contains(s, "foreign key constraint failed") ||
		strings.Contains(s, "sqlstate 23503"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint") ||
		strings.Contains(s, "sqlstate 23514"):
		return true, CheckConstraintViolationErr
	case strings.Contains(s, "string data right truncation") ||
		strings.Contains(s, "sqlstate 22001") ||
		strings.Contains(s, "data truncated"):
		return true, DataTruncatedErr
	case strings.Contains(s, "datatype mismatch") ||
		strings.Contains(s, "sqlstate 42804"):
		return true, InvalidTypeCastErr
	}
	return false, UnknownErr
}

func classifySQLState(code string) SQLError {
	switch strings.ToUpper(code) {
	case "3D000":
		return NoDatabaseErr
	case "42P04":
		return ExistDatabaseErr
	case "28P01", "28000":
		return AuthFailedErr
	case "42P01":
		return NoTableErr
	case "42P07":
		return ExistTableErr
	case "42703":
		return NoColumnErr
	case "42704":
		return NoIndexErr
	case "23505":
		return DuplicateKeyErr
	case "23502":
		return NotNullViolationErr
	case "23503":
		return ForeignKeyViolationErr
	case "23514":
		return CheckConstraintViolationErr
	case "22001":
		return DataTruncatedErr
	case "42804":
		return InvalidTypeCastErr
	default:
		return UnknownErr
	}
}
