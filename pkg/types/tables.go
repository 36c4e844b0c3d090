package types

// Table names.
const (
	SettingsTable   = "settings"
	CategoriesTable = "categories"
	NotesTable      = "notes"
	SharesTable     = "shares"
	TrashTable      = "trash"
	LogsTable       = "logs"
)

// StandardTableNames lists every table created by the schema.
var StandardTableNames = []string{
	SettingsTable,
	CategoriesTable,
	NotesTable,
	SharesTable,
	TrashTable,
	LogsTable,
}

// BackupTableNames lists the tables included in a full database export, in
// export order.
var BackupTableNames = []string{
	SettingsTable,
	CategoriesTable,
	NotesTable,
	SharesTable,
	TrashTable,
}
