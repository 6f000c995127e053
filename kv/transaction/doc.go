package transaction

// The transaction package holds the transaction side of tinyrep. Transactions follow strict two phase locking: a
// read-write transaction takes a read or write lock at a site before touching a copy there, and keeps every lock until
// it commits or aborts. Read-only transactions take no locks; they read the snapshot committed before they began.
//
// Within this package, `Registry` tracks the live transactions, their start timestamps and the sites they have state
// at. `lock` implements the per-site lock table with FIFO waitlists and lock upgrades. `deadlock` builds a wait-for
// graph from the lock tables and picks the youngest transaction on a cycle as the victim. `commands` decodes script
// lines into commands and describes the read and write operations the coordinator executes against the sites.
//
// Replication follows available copies: a read is served by any up site holding a readable copy, and a write must lock
// and update every up site holding the variable. A site that recovers keeps its replicated copies unreadable until a
// transaction commits a write to them, since it may have missed writes during the outage.
