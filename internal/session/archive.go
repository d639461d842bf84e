package session

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/koustreak/askdb/internal/agent"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/filestore"
)

// Archiver persists a transcript before it is discarded.
type Archiver interface {
	Archive(ctx context.Context, sessionID string, turns []agent.Turn) error
}

// Transcript is the stored form of an archived conversation.
type Transcript struct {
	SessionID  string       `json:"session_id"`
	ArchivedAt time.Time    `json:"archived_at"`
	Turns      []agent.Turn `json:"turns"`
}

// StoreArchiver writes transcripts as JSON objects keyed
// "{session id}/{timestamp}.json".
type StoreArchiver struct {
	store filestore.Store
	now   func() time.Time
}

// NewStoreArchiver returns an Archiver backed by store.
func NewStoreArchiver(store filestore.Store) *StoreArchiver {
	return &StoreArchiver{store: store, now: time.Now}
}

func (a *StoreArchiver) Archive(ctx context.Context, sessionID string, turns []agent.Turn) error {
	doc := Transcript{SessionID: sessionID, ArchivedAt: a.now().UTC(), Turns: turns}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to encode transcript", err)
	}

	key := path.Join(sessionID, doc.ArchivedAt.Format("20060102T150405.000000000Z")+".json")
	_, err = a.store.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json")
	return err
}

// List returns the archived transcripts of one session, oldest first.
func (a *StoreArchiver) List(ctx context.Context, sessionID string) ([]filestore.ObjectInfo, error) {
	return a.store.ListObjects(ctx, filestore.ListOptions{Prefix: sessionID + "/"})
}

// Load reads one archived transcript by key.
func (a *StoreArchiver) Load(ctx context.Context, key string) (*Transcript, error) {
	obj, err := a.store.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	var doc Transcript
	if err := json.NewDecoder(obj).Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "archived transcript is not valid JSON", err)
	}
	return &doc, nil
}
