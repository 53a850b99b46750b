// Package field provides fluent builders for declaring the columns and
// references of an ezdb entity type.
//
// Field names are column names and follow database conventions (snake_case):
//
//	field.Int("id").Unsigned().AutoIncrement()
//	field.Varchar("email", 255).NotNull()
//	field.Text("bio")
//
// # Field Types
//
// Five column types are supported:
//
//	field.Int("count")          // INT
//	field.Float("price")        // FLOAT
//	field.Varchar("name", 64)   // VARCHAR(64)
//	field.Text("description")   // TEXT
//	field.Blob("avatar")        // BLOB
//
// # Attributes
//
//	field.Int("id").
//	    Unsigned().        // UNSIGNED (MySQL only)
//	    AutoIncrement().   // value assigned by the database on insert
//	    NotNull()          // NOT NULL; otherwise the column defaults to NULL
//
// # Defaults
//
// A literal default becomes part of the column definition. A default
// function is evaluated by the entity core when a new record is inserted
// without a value for the field:
//
//	field.Varchar("status", 16).Default("active")
//	field.Varchar("id", 36).DefaultFunc(func() any { return uuid.NewString() })
//
// # References
//
// A reference embeds the primary key of another entity type as foreign-key
// columns named "<reference>_<key>":
//
//	field.Ref("customer", "User") // adds customer_id when User's key is id
//
// A Descriptor is immutable once built; builders return copies.
package field
