// Package all wires the built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their constructors with the storage package.
//
// Importing this package makes the following storage kinds available at
// runtime:
//
//   - "sqlite"   (sedump/internal/storage/sqlite)
//   - "postgres" (sedump/internal/storage/postgres)
//
// Typical usage, in a main package:
//
//	import _ "sedump/internal/storage/all"
//
// after which storage.New can open a Repository for any built-in kind. A
// binary that only needs one backend can blank-import that backend package
// directly instead.
package all

import (
	_ "sedump/internal/storage/postgres"
	_ "sedump/internal/storage/sqlite"
)
