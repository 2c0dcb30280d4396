// Package mongo keeps file records in a MongoDB collection.
package mongo

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
	"github.com/tendant/simple-files/pkg/filestore"
)

const (
	filesC = "files"

	defaultDialTimeout = 10 * time.Second
)

// Config options for the MongoDB metadata store
type Config struct {
	URI         string // mongodb:// connection string
	Database    string // Database holding the files collection
	DialTimeout time.Duration
}

// fileDoc is the persisted form of a filestore.FileRecord. Field names match
// the documents written by earlier deployments of the service.
type fileDoc struct {
	DocID       bson.ObjectId `bson:"_id"`
	Filename    string        `bson:"filename"`
	ContentType string        `bson:"content_type"`
	FilePath    string        `bson:"file_path"`
	Size        int64         `bson:"size"`
	UploadDate  time.Time     `bson:"upload_date"`
}

func newFileDoc(id bson.ObjectId, record *filestore.FileRecord) fileDoc {
	return fileDoc{
		DocID:       id,
		Filename:    record.Filename,
		ContentType: record.ContentType,
		FilePath:    record.StorageLocator,
		Size:        record.Size,
		UploadDate:  record.UploadDate.UTC(),
	}
}

func (doc fileDoc) record() *filestore.FileRecord {
	return &filestore.FileRecord{
		ID:             doc.DocID.Hex(),
		Filename:       doc.Filename,
		ContentType:    doc.ContentType,
		StorageLocator: doc.FilePath,
		Size:           doc.Size,
		UploadDate:     doc.UploadDate.UTC(),
	}
}

// Store implements filestore.MetadataStore on a MongoDB collection.
//
// mgo has no context support, so every call runs on a copied session in its
// own goroutine and the caller stops waiting when ctx is done. An abandoned
// call keeps its goroutine and session until the driver returns; the only
// bound on it is the socket timeout taken from the ctx deadline, or the
// session default when ctx has none. A write abandoned this way may still
// commit.
type Store struct {
	session  *mgo.Session
	database string
}

// New dials MongoDB and ensures the upload_date index exists.
func New(cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.NotValidf("empty mongo URI")
	}

	info, err := mgo.ParseURL(cfg.URI)
	if err != nil {
		return nil, errors.Annotate(err, "parsing mongo URI")
	}
	info.Timeout = cfg.DialTimeout
	if info.Timeout <= 0 {
		info.Timeout = defaultDialTimeout
	}
	if cfg.Database != "" {
		info.Database = cfg.Database
	}
	if info.Database == "" {
		return nil, errors.NotValidf("empty mongo database")
	}

	session, err := mgo.DialWithInfo(info)
	if err != nil {
		return nil, errors.Annotate(err, "dialing mongo")
	}
	session.SetMode(mgo.Monotonic, true)

	s := NewWithSession(session, info.Database)
	if err := s.ensureIndexes(); err != nil {
		session.Close()
		return nil, errors.Trace(err)
	}
	return s, nil
}

// NewWithSession wraps an existing session. The store takes ownership and
// closes it in Close.
func NewWithSession(session *mgo.Session, database string) *Store {
	return &Store{session: session, database: database}
}

// Close releases the root session.
func (s *Store) Close() {
	s.session.Close()
}

func (s *Store) ensureIndexes() error {
	session := s.session.Copy()
	defer session.Close()

	err := session.DB(s.database).C(filesC).EnsureIndex(mgo.Index{
		Key: []string{"-upload_date"},
	})
	return errors.Annotate(err, "ensuring upload_date index")
}

func (s *Store) Insert(ctx context.Context, record *filestore.FileRecord) (string, error) {
	doc := newFileDoc(bson.NewObjectId(), record)
	err := s.run(ctx, func(files *mgo.Collection) error {
		return files.Insert(doc)
	})
	if err != nil {
		return "", errors.Annotatef(err, "inserting file %q", record.Filename)
	}
	return doc.DocID.Hex(), nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*filestore.FileRecord, error) {
	// Ids that are not ObjectIds cannot match any document
	if !bson.IsObjectIdHex(id) {
		return nil, filestore.ErrFileNotFound
	}

	var doc fileDoc
	err := s.run(ctx, func(files *mgo.Collection) error {
		return files.FindId(bson.ObjectIdHex(id)).One(&doc)
	})
	if err == mgo.ErrNotFound {
		return nil, filestore.ErrFileNotFound
	} else if err != nil {
		return nil, errors.Annotatef(err, "finding file %q", id)
	}
	return doc.record(), nil
}

func (s *Store) List(ctx context.Context, params filestore.ListParams) ([]*filestore.FileRecord, error) {
	var docs []fileDoc
	err := s.run(ctx, func(files *mgo.Collection) error {
		query := files.Find(nil).Sort("-upload_date", "-_id")
		if params.Skip > 0 {
			query = query.Skip(params.Skip)
		}
		if params.Limit > 0 {
			query = query.Limit(params.Limit)
		}
		return query.All(&docs)
	})
	if err != nil {
		return nil, errors.Annotate(err, "listing files")
	}

	records := make([]*filestore.FileRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.record())
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int
	err := s.run(ctx, func(files *mgo.Collection) (err error) {
		n, err = files.Count()
		return err
	})
	if err != nil {
		return 0, errors.Annotate(err, "counting files")
	}
	return int64(n), nil
}

// run executes fn against the files collection on a copied session. The
// session is closed by the goroutine running fn, never by the caller.
func (s *Store) run(ctx context.Context, fn func(files *mgo.Collection) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	session := s.session.Copy()
	if deadline, ok := ctx.Deadline(); ok {
		session.SetSocketTimeout(time.Until(deadline))
	}

	done := make(chan error, 1)
	go func() {
		defer session.Close()
		done <- fn(session.DB(s.database).C(filesC))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
