package ddl

// Logical column types. Each dialect maps them to a concrete SQL type.
const (
	Text      = "text"
	BigInt    = "bigint"
	Float     = "float"
	Timestamp = "timestamp"
)

// ColumnDef describes one column. Name is unquoted; quoting happens at render
// time. When SQLType is empty the dialect derives it from Type.
type ColumnDef struct {
	Name       string
	Type       string // logical type
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string // raw SQL expression
}

// TableDef is a dotted table name ("schema.table") plus ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// ColumnNames returns the column names in order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}
