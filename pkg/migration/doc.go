/*
Package migration implements the Migration Framework (spec §4.6): a menu of
named, idempotent functions that run once against committed storage at a
fixed version, each guarded by its own "already applied" nonverifiable
marker so re-running the menu is always safe.

Grounded on cmd/warren-migrate's dry-run/backup CLI shape (inspect first,
then either report what would change or apply it inside a single
transaction), generalized from one hard-coded bucket rename to a registry
of Funcs addressed by name. The package also produces the two files a
freshly migrated node needs to start from: genesis.json and
priv_validator_state.json.
*/
package migration
