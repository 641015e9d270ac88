package boltdb

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/submission"
)

var (
	sectionsBucket    = []byte("sections")
	itemsBucket       = []byte("items")
	submissionsBucket = []byte("submissions")
)

// Store persists the content tree and submissions in a single bbolt file;
// one bucket per entity, values JSON-encoded.
type Store struct {
	db *bolt.DB
}

func Open(conf *core.Config) (*Store, error) {
	db, err := bolt.Open(conf.Database.Path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt file")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{sectionsBucket, itemsBucket, submissionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating buckets")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetTree(subjectID string) ([]content.Section, error) {
	var sections []content.Section
	err := s.db.View(func(tx *bolt.Tx) error {
		sections = treeSections(tx, subjectID)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading tree")
	}
	if len(sections) == 0 {
		return nil, core.ErrNotFound
	}
	return sections, nil
}

func (s *Store) CreateSection(subjectID string, sec content.Section) (content.Section, error) {
	sec.ID = uuid.New().String()
	sec.SubjectID = subjectID
	sec.Items = []content.Item{}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if sec.Order == 0 {
			sec.Order = len(treeSections(tx, subjectID)) + 1
		}
		return putJSON(tx.Bucket(sectionsBucket), sec.ID, sec)
	})
	if err != nil {
		return content.Section{}, errors.Wrap(err, "creating section")
	}
	return sec, nil
}

func (s *Store) UpdateSection(id string, us content.UpdateSection) (content.Section, error) {
	var sec content.Section
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sectionsBucket)
		if err := getJSON(b, id, &sec); err != nil {
			return err
		}
		us.ApplyTo(&sec)
		return putJSON(b, id, sec)
	})
	if err != nil {
		return content.Section{}, errors.Wrap(err, "updating section")
	}
	return sec, nil
}

func (s *Store) DeleteSection(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sectionsBucket)
		var sec content.Section
		if err := getJSON(b, id, &sec); err != nil {
			return err
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		for _, it := range sectionItems(tx, id) {
			if err := deleteItemCascade(tx, it.ID); err != nil {
				return err
			}
		}
		return renumberSections(tx, sec.SubjectID)
	})
	return errors.Wrap(err, "deleting section")
}

func (s *Store) ReorderSections(subjectID string, orderedIDs []string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sectionsBucket)
		for i, id := range orderedIDs {
			var sec content.Section
			if err := getJSON(b, id, &sec); err != nil {
				return errors.Wrap(err, id)
			}
			if sec.SubjectID != subjectID {
				return errors.Wrap(core.ErrNotFound, id)
			}
			sec.Order = i + 1
			if err := putJSON(b, id, sec); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

func (s *Store) CreateItem(sectionID string, it content.Item) (content.Item, error) {
	it.ID = uuid.New().String()
	it.SectionID = sectionID
	it.Sanitize()
	err := s.db.Update(func(tx *bolt.Tx) error {
		var sec content.Section
		if err := getJSON(tx.Bucket(sectionsBucket), sectionID, &sec); err != nil {
			return err
		}
		if it.Order == 0 {
			it.Order = len(sectionItems(tx, sectionID)) + 1
		}
		return putJSON(tx.Bucket(itemsBucket), it.ID, it)
	})
	if err != nil {
		return content.Item{}, errors.Wrap(err, "creating item")
	}
	return it, nil
}

func (s *Store) UpdateItem(id string, ui content.UpdateItem) (content.Item, error) {
	var it content.Item
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(itemsBucket)
		if err := getJSON(b, id, &it); err != nil {
			return err
		}
		ui.ApplyTo(&it)
		return putJSON(b, id, it)
	})
	if err != nil {
		return content.Item{}, errors.Wrap(err, "updating item")
	}
	return it, nil
}

func (s *Store) DeleteItem(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		var it content.Item
		if err := getJSON(tx.Bucket(itemsBucket), id, &it); err != nil {
			return err
		}
		if err := deleteItemCascade(tx, id); err != nil {
			return err
		}
		return renumberItems(tx, it.SectionID)
	})
	return errors.Wrap(err, "deleting item")
}

func (s *Store) ReorderItems(sectionID string, orderedIDs []string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(itemsBucket)
		for i, id := range orderedIDs {
			var it content.Item
			if err := getJSON(b, id, &it); err != nil {
				return errors.Wrap(err, id)
			}
			if it.SectionID != sectionID {
				return errors.Wrap(core.ErrNotFound, id)
			}
			it.Order = i + 1
			if err := putJSON(b, id, it); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

func (s *Store) GetSection(id string) (content.Section, error) {
	var sec content.Section
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(sectionsBucket), id, &sec)
	})
	if err != nil {
		return content.Section{}, errors.Wrap(err, "getting section")
	}
	return sec, nil
}

func (s *Store) GetItem(id string) (content.Item, error) {
	var it content.Item
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(itemsBucket), id, &it)
	})
	if err != nil {
		return content.Item{}, errors.Wrap(err, "getting item")
	}
	return it, nil
}

func (s *Store) ListSubmissions(itemID string) ([]submission.Submission, error) {
	subs := make([]submission.Submission, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(submissionsBucket).ForEach(func(_, v []byte) error {
			var sub submission.Submission
			if err := json.Unmarshal(v, &sub); err != nil {
				return err
			}
			if sub.ItemID == itemID {
				subs = append(subs, sub)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

func (s *Store) CreateSubmission(sub submission.Submission) (submission.Submission, error) {
	sub.ID = uuid.New().String()
	sub.Status = submission.StatusSubmitted
	sub.CreatedAt = time.Now().UTC()
	err := s.db.Update(func(tx *bolt.Tx) error {
		var it content.Item
		if err := getJSON(tx.Bucket(itemsBucket), sub.ItemID, &it); err != nil {
			return err
		}
		return putJSON(tx.Bucket(submissionsBucket), sub.ID, sub)
	})
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "creating submission")
	}
	return sub, nil
}

func (s *Store) GetSubmission(id string) (submission.Submission, error) {
	var sub submission.Submission
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(submissionsBucket), id, &sub)
	})
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "getting submission")
	}
	return sub, nil
}

func (s *Store) SetSubmissionStatus(id string, status submission.Status, note *string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(submissionsBucket)
		var sub submission.Submission
		if err := getJSON(b, id, &sub); err != nil {
			return err
		}
		sub.Status = status
		if note != nil {
			sub.ReviewNote = *note
		}
		return putJSON(b, id, sub)
	})
	return errors.Wrap(err, "setting submission status")
}

func (s *Store) DeleteSubmission(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(submissionsBucket)
		if b.Get([]byte(id)) == nil {
			return core.ErrNotFound
		}
		return b.Delete([]byte(id))
	})
	return errors.Wrap(err, "deleting submission")
}

// tx helpers

func getJSON(b *bolt.Bucket, id string, out interface{}) error {
	raw := b.Get([]byte(id))
	if raw == nil {
		return core.ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func putJSON(b *bolt.Bucket, id string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(id), raw)
}

func treeSections(tx *bolt.Tx, subjectID string) []content.Section {
	sections := make([]content.Section, 0)
	_ = tx.Bucket(sectionsBucket).ForEach(func(_, v []byte) error {
		var sec content.Section
		if err := json.Unmarshal(v, &sec); err != nil {
			return err
		}
		if sec.SubjectID == subjectID {
			sec.Items = sectionItems(tx, sec.ID)
			sections = append(sections, sec)
		}
		return nil
	})
	sort.Slice(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })
	return sections
}

func sectionItems(tx *bolt.Tx, sectionID string) []content.Item {
	items := make([]content.Item, 0)
	_ = tx.Bucket(itemsBucket).ForEach(func(_, v []byte) error {
		var it content.Item
		if err := json.Unmarshal(v, &it); err != nil {
			return err
		}
		if it.SectionID == sectionID {
			items = append(items, it)
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	return items
}

func deleteItemCascade(tx *bolt.Tx, itemID string) error {
	if err := tx.Bucket(itemsBucket).Delete([]byte(itemID)); err != nil {
		return err
	}
	b := tx.Bucket(submissionsBucket)
	var stale [][]byte
	_ = b.ForEach(func(k, v []byte) error {
		var sub submission.Submission
		if err := json.Unmarshal(v, &sub); err != nil {
			return err
		}
		if sub.ItemID == itemID {
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	})
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func renumberSections(tx *bolt.Tx, subjectID string) error {
	b := tx.Bucket(sectionsBucket)
	for i, sec := range treeSections(tx, subjectID) {
		sec.Order = i + 1
		sec.Items = nil
		if err := putJSON(b, sec.ID, sec); err != nil {
			return err
		}
	}
	return nil
}

func renumberItems(tx *bolt.Tx, sectionID string) error {
	b := tx.Bucket(itemsBucket)
	for i, it := range sectionItems(tx, sectionID) {
		it.Order = i + 1
		if err := putJSON(b, it.ID, it); err != nil {
			return err
		}
	}
	return nil
}
