package tinyrep

/*
TinyRep simulates concurrency control and recovery for a database replicated across a set of sites. It is a teaching
tool: the sites, their failures and the passage of time are all simulated inside one process, driven by a script of
transactional commands such as `begin(T1)`, `W(T1,x2,10)`, `fail(3)` and `end(T1)`.

Read-write transactions use strict two phase locking. Read-only transactions read from the multiversion history without
locking. Even numbered variables are replicated at every site using available copies; odd numbered variables live at a
single site. Deadlocks are detected on a global wait-for graph and broken by aborting the youngest transaction.

The `tinyrep` module is organized into the following packages:

* `kv/storage`: the committed version history and working values of the variables at one site.
* `kv/transaction`: transactions, per-site lock tables, deadlock detection and the command language.
* `kv/site`: a data site, combining a store and a lock table with failure and recovery.
* `kv/coordinator`: the transaction manager that runs commands against the sites, one tick per line.
* `kv/tinyrep`: the command line driver.
* `log`: the leveled logger used throughout.
*/
