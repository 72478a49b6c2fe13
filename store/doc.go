// Package store defines the document store capability consumed by the model
// layer, together with two implementations: an in-memory backend suitable
// for tests and a Cloud Firestore backend.
//
// # Paths
//
// Documents live in a hierarchy of collections. A path is a "/"-separated
// sequence of segments; an odd number of segments addresses a collection
// ("users", "users/u1/orders"), an even number addresses a document
// ("users/u1"). Collections nested under a document are subcollections.
//
// # Backends
//
// [Backend] covers document reads, writes, queries and transactions.
// [Admin] covers composite index and TTL policy provisioning, which on real
// stores goes through a separate administrative API.
//
//   - [MemoryBackend] implements both interfaces entirely in memory with
//     optimistic-concurrency transactions. It exists for tests and local
//     development.
//   - [FirestoreBackend] adapts a *firestore.Client; [FirestoreAdmin]
//     adapts the Firestore admin API.
//
// # Transactions
//
// [Backend.RunTransaction] runs a function against a [Tx]. Reads inside the
// transaction observe a consistent snapshot and writes are buffered until
// commit, so all reads must be issued before the first write. When a commit
// loses a race with a concurrent writer the function is re-executed from
// scratch, up to the backend's retry budget.
//
// # Errors
//
// The package defines sentinel errors compared with errors.Is:
//
//   - [ErrNotFound] - no document at the requested path
//   - [ErrInvalidPath] - structurally invalid path
//   - [ErrConflict] - transaction retry budget exhausted
//   - [ErrReadAfterWrite] - transaction read issued after a buffered write
package store
