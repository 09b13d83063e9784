package main

import (
	"github.com/oba-ldap/obacore/internal/importer/foreman"
	"github.com/oba-ldap/obacore/internal/importer/writer"
	"github.com/oba-ldap/obacore/internal/kv"
)

// registerCoreSlots opens (creating if absent) the identity tables every
// job touches — id2entry plus either entryrdn or the legacy entrydn, and
// parentid — and registers them with w.
func registerCoreSlots(env *kv.Env, w *writer.Writer, subtreeRename bool) error {
	txn, err := env.TxnBegin(true)
	if err != nil {
		return err
	}

	id2entry, err := txn.DBIOpen(foreman.SlotID2Entry, kv.DBICreate)
	if err != nil {
		txn.Abort()
		return err
	}
	w.RegisterSlot(foreman.SlotID2Entry, id2entry)

	identitySlot := foreman.SlotEntryDN
	flags := kv.DBICreate
	if subtreeRename {
		identitySlot = foreman.SlotEntryRDN
		flags |= kv.DBIDupSort
	}
	identity, err := txn.DBIOpen(identitySlot, flags)
	if err != nil {
		txn.Abort()
		return err
	}
	w.RegisterSlot(identitySlot, identity)

	parentid, err := txn.DBIOpen(foreman.SlotParentID, kv.DBICreate|kv.DBIDupSort)
	if err != nil {
		txn.Abort()
		return err
	}
	w.RegisterSlot(foreman.SlotParentID, parentid)

	return txn.Commit()
}

// openDBI opens an existing (or, if absent, newly created) named database
// and returns its handle, for callers that need the raw DBI rather than a
// writer registration (e.g. a read-only reindex source).
func openDBI(env *kv.Env, name string, flags kv.DBIFlags) (kv.DBI, error) {
	txn, err := env.TxnBegin(true)
	if err != nil {
		return 0, err
	}
	dbi, err := txn.DBIOpen(name, flags)
	if err != nil {
		txn.Abort()
		return 0, err
	}
	if err := txn.Commit(); err != nil {
		return 0, err
	}
	return dbi, nil
}

// registerIndexSlots opens one dbi per attribute named in attrs and
// registers it with w under the attribute's own slot name.
func registerIndexSlots(env *kv.Env, w *writer.Writer, attrs []string) error {
	txn, err := env.TxnBegin(true)
	if err != nil {
		return err
	}
	for _, attr := range attrs {
		dbi, err := txn.DBIOpen(attr, kv.DBICreate|kv.DBIDupSort)
		if err != nil {
			txn.Abort()
			return err
		}
		w.RegisterSlot(attr, dbi)
	}
	return txn.Commit()
}
