package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/theimaginaryfoundation/ask-scriptures/insight/fileutils"
)

// JSONFilePersister saves the whole snapshot as one JSON document, replaced atomically.
// With Backup set the previous document is kept next to it as <path>.bak.
type JSONFilePersister struct {
	Path   string
	Pretty bool
	Backup bool
}

func (p JSONFilePersister) Load(_ context.Context) (Snapshot, bool, error) {
	if p.Path == "" {
		return Snapshot{}, false, errors.New("json persister: path is empty")
	}
	var snap Snapshot
	found, err := fileutils.ReadJSONFile(p.Path, &snap)
	if err != nil || !found {
		return Snapshot{}, found, err
	}
	if snap.Version > SnapshotVersion {
		return Snapshot{}, true, fmt.Errorf("json persister: snapshot version %d is newer than %d", snap.Version, SnapshotVersion)
	}
	return snap, true, nil
}

func (p JSONFilePersister) Save(ctx context.Context, snap Snapshot) error {
	if p.Path == "" {
		return errors.New("json persister: path is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Backup {
		if _, err := fileutils.BackupFile(p.Path); err != nil {
			return fmt.Errorf("json persister: backup: %w", err)
		}
	}
	return fileutils.WriteJSONFileAtomic(p.Path, snap, p.Pretty)
}
