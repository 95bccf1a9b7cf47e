// Package store imports a schema catalog from an existing SQLite database.
//
// Tables map onto the token model as follows:
//
//   - every ordinary table is an entity type named after the singular of
//     the table name ("orders" → Order); columns become properties
//   - a column "<name>_id" with a foreign key becomes a lite reference
//     property <Name> to the referenced entity, and the referenced entity
//     gains a queryable back-reference named after the referencing table
//   - a table with a "parent_id" foreign key is an MList of its parent:
//     "order_lines" under "orders" is the property Order.Lines whose rows
//     are the embedded type OrderLine; a "row_order" column marks it
//     ordered, and a table with a single value column is a list of scalars
//
// Visibility predicates and display formats are kept next to the data in
// the qtoken_visibility and qtoken_format tables, created on Open.
//
// # Database Configuration
//
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
