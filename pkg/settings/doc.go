// Package settings loads and saves typed application settings as a
// versioned XML document.
//
// A settings type is described by a Schema built from Define calls. Each
// Settings instance owns the live values for one Storage (plain file,
// encrypted file, bbolt file) and a guard that keeps Load and Save from
// interleaving.
//
// Document shape:
//
//	<Settings version="1.0.0.0">
//	  <item key="Theme"><value>dark</value></item>
//	  <item key="Proxy" IsNull="true"></item>
//	</Settings>
//
// Items whose key is not in the schema are never interpreted. They are kept
// from the last load (or from the file being overwritten) and written back
// unchanged, so settings written by a newer version of an application
// survive a round trip through an older one.
//
// When the stored version differs from the schema version, Load hands the
// document to the migration hook registered with WithMigration. Without a
// hook, or when the hook returns no document, Load fails with
// ErrVersionUnsupported.
package settings
