package datasource

import (
	"time"
)

// EngineKind identifies the database engine behind a connection.
type EngineKind string

const (
	EnginePostgres  EngineKind = "postgresql"
	EngineMySQL     EngineKind = "mysql"
	EngineSQLServer EngineKind = "sqlserver"
)

const DefaultConnectTimeout = 10 * time.Second

// ConnectionDescriptor identifies and authenticates a target database.
// Durations are expressed in milliseconds to match the stored and wire form;
// zero means "use the manager default".
type ConnectionDescriptor struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     EngineKind `json:"type"`
	Host     string     `json:"host" validate:"required"`
	Port     int        `json:"port" validate:"gt=0"`
	Database string     `json:"database" validate:"required"`
	Username string     `json:"username" validate:"required"`
	Password string     `json:"password,omitempty" validate:"required"`
	SSL      bool       `json:"ssl,omitempty"`

	ConnectionTimeoutMs   int64 `json:"connectionTimeoutMs,omitempty"`
	QueryTimeoutMs        int64 `json:"queryTimeoutMs,omitempty"`
	IdleTimeoutMs         int64 `json:"idleTimeoutMs,omitempty"`
	HealthCheckIntervalMs int64 `json:"healthCheckIntervalMs,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Redacted returns a copy of the descriptor without the password.
func (d ConnectionDescriptor) Redacted() ConnectionDescriptor {
	d.Password = ""
	return d
}

// ConnectTimeout returns the dial timeout, defaulting to 10s.
func (d ConnectionDescriptor) ConnectTimeout() time.Duration {
	return msOr(d.ConnectionTimeoutMs, DefaultConnectTimeout)
}

func (d ConnectionDescriptor) QueryTimeout(def time.Duration) time.Duration {
	return msOr(d.QueryTimeoutMs, def)
}

func (d ConnectionDescriptor) IdleTimeout(def time.Duration) time.Duration {
	return msOr(d.IdleTimeoutMs, def)
}

func (d ConnectionDescriptor) HealthCheckInterval(def time.Duration) time.Duration {
	return msOr(d.HealthCheckIntervalMs, def)
}

func msOr(ms int64, def time.Duration) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// ConnectionState is the lifecycle state of a single adapter.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// ConnectionStatus is a point-in-time snapshot of a connection.
type ConnectionStatus struct {
	ID            string          `json:"id"`
	Status        ConnectionState `json:"status"`
	Error         string          `json:"error,omitempty"`
	LastConnected *time.Time      `json:"lastConnected,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate adapter state.
func (s ConnectionStatus) Clone() ConnectionStatus {
	if s.LastConnected != nil {
		t := *s.LastConnected
		s.LastConnected = &t
	}
	return s
}

// FieldInfo describes one result column as reported by the driver.
type FieldInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Length *int64 `json:"length,omitempty"`
}

// QueryResult holds the outcome of a single statement.
type QueryResult struct {
	Rows          []map[string]any `json:"rows"`
	Fields        []FieldInfo      `json:"fields"`
	RowCount      int              `json:"rowCount"`
	ExecutionTime int64            `json:"executionTime"` // milliseconds
	AffectedRows  *int64           `json:"affectedRows,omitempty"`
}

// DatabaseSchema is the introspected structure of one database.
type DatabaseSchema struct {
	Tables     []TableInfo     `json:"tables"`
	Views      []ViewInfo      `json:"views"`
	Functions  []FunctionInfo  `json:"functions"`
	Procedures []ProcedureInfo `json:"procedures"`
}

type TableInfo struct {
	Name        string           `json:"name"`
	Columns     []ColumnInfo     `json:"columns"`
	Indexes     []IndexInfo      `json:"indexes"`
	ForeignKeys []ForeignKeyInfo `json:"foreignKeys"`
	RowCount    int64            `json:"rowCount"`
}

type ColumnInfo struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Nullable        bool    `json:"nullable"`
	DefaultValue    *string `json:"defaultValue,omitempty"`
	IsPrimaryKey    bool    `json:"isPrimaryKey"`
	IsAutoIncrement bool    `json:"isAutoIncrement"`
}

type IndexInfo struct {
	Name      string   `json:"name"`
	Columns   []string `json:"columns"`
	IsUnique  bool     `json:"isUnique"`
	IsPrimary bool     `json:"isPrimary"`
}

type ForeignKeyInfo struct {
	Name             string `json:"name"`
	Column           string `json:"column"`
	ReferencedTable  string `json:"referencedTable"`
	ReferencedColumn string `json:"referencedColumn"`
}

type ViewInfo struct {
	Name       string       `json:"name"`
	Columns    []ColumnInfo `json:"columns"`
	Definition string       `json:"definition"`
}

type FunctionInfo struct {
	Name       string          `json:"name"`
	Parameters []ParameterInfo `json:"parameters"`
	ReturnType string          `json:"returnType"`
	Definition string          `json:"definition"`
}

type ProcedureInfo struct {
	Name       string          `json:"name"`
	Parameters []ParameterInfo `json:"parameters"`
	Definition string          `json:"definition"`
}

// ParameterMode is the direction of a routine parameter.
type ParameterMode string

const (
	ParamIn    ParameterMode = "IN"
	ParamOut   ParameterMode = "OUT"
	ParamInOut ParameterMode = "INOUT"
)

type ParameterInfo struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Mode         ParameterMode `json:"mode"`
	DefaultValue *string       `json:"defaultValue,omitempty"`
}

// NormalizeParameterMode maps engine spellings ("in", "IN OUT", "b") onto
// ParameterMode, defaulting to IN.
func NormalizeParameterMode(mode string) ParameterMode {
	switch mode {
	case "OUT", "out", "o":
		return ParamOut
	case "INOUT", "inout", "IN OUT", "b":
		return ParamInOut
	default:
		return ParamIn
	}
}
