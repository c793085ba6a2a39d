package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

// ConceptRepository implements storage.ConceptRepository for BadgerDB.
type ConceptRepository struct {
	backend *Backend
}

var _ storage.ConceptRepository = (*ConceptRepository)(nil)

// NewConceptRepository creates a new ConceptRepository.
// Concepts and relations use content-based IDs, so no sequence is needed.
func NewConceptRepository(backend *Backend) (*ConceptRepository, error) {
	return &ConceptRepository{
		backend: backend,
	}, nil
}

// Close releases resources. ConceptRepository has no resources to release.
func (r *ConceptRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ConceptRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// UpsertConcept creates or updates a concept keyed by (owner, name).
// Category and Description are overwritten last-writer-wins.
func (r *ConceptRepository) UpsertConcept(ctx context.Context, concept *core.Concept) (*core.Concept, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if concept.Id == 0 {
			concept.Id = core.IDFromContent(concept.Tuple())
		}

		key := makeConceptKey(concept.Id)
		old, err := readConcept(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if old != nil {
			concept.InsertedAt = old.InsertedAt
		} else {
			concept.InsertedAt = now
		}
		concept.UpdatedAt = now

		value := storage.MarshalConcept(concept)
		if err := tx.Set(key, value); err != nil {
			return err
		}

		nameKey := makeConceptNameKey(concept.OwnerId, concept.Name)
		if err := tx.Set(nameKey, storage.MarshalID(concept.Id)); err != nil {
			return err
		}

		ownerKey := makeConceptOwnerKey(concept.OwnerId, concept.Id)
		if err := tx.Set(ownerKey, storage.MarshalID(concept.Id)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return concept, err
}

// GetConcept retrieves a single concept by ID.
func (r *ConceptRepository) GetConcept(ctx context.Context, id core.ID) (*core.Concept, error) {
	var result *core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeConceptKey(id)
		var err error
		result, err = readConcept(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetConcepts retrieves multiple concepts by their IDs.
func (r *ConceptRepository) GetConcepts(ctx context.Context, ids ...core.ID) ([]*core.Concept, error) {
	var result []*core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeConceptKey(id)
			concept, err := readConcept(tx, key)
			if err != nil {
				return err
			}
			if concept != nil {
				result = append(result, concept)
			}
		}
		return nil
	}, false)
	return result, err
}

// FindConceptByName finds an owner's concept by name.
func (r *ConceptRepository) FindConceptByName(ctx context.Context, owner core.ID, name string) (*core.Concept, error) {
	var result *core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		nameKey := makeConceptNameKey(owner, name)
		item, err := tx.Get(nameKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var conceptID core.ID
		err = item.Value(func(val []byte) error {
			conceptID, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return err
		}

		result, err = readConcept(tx, makeConceptKey(conceptID))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetConceptsByOwner retrieves all concepts belonging to an owner.
func (r *ConceptRepository) GetConceptsByOwner(ctx context.Context, owner core.ID) ([]*core.Concept, error) {
	var results []*core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIndexKey(conceptOwnerPrefix, uint64(owner))
		ids, err := scanIndexIDs(tx, prefix)
		if err != nil {
			return err
		}

		for _, id := range ids {
			concept, err := readConcept(tx, makeConceptKey(id))
			if err != nil {
				return err
			}
			if concept != nil {
				results = append(results, concept)
			}
		}
		return nil
	}, false)

	return results, err
}

// UpsertRelation records a directed relation between two concepts.
// Returns true when a new relation was created.
func (r *ConceptRepository) UpsertRelation(ctx context.Context, relation *core.ConceptRelation) (bool, error) {
	var created bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if relation.Id == 0 {
			relation.Id = core.IDFromContent(core.RelationTuple(relation.SourceId, relation.TargetId, relation.Relation))
		}

		key := makeRecordKey(relationPrefix, relation.Id)

		// Duplicate relations are no-ops
		_, err := tx.Get(key)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		relation.CreatedAt = time.Now().UTC()
		created = true

		value := storage.MarshalConceptRelation(relation)
		if err := tx.Set(key, value); err != nil {
			return err
		}

		srcKey := makeRelationSrcKey(relation.SourceId, relation.Id)
		if err := tx.Set(srcKey, storage.MarshalID(relation.Id)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return created, err
}

// GetRelationsForConcept retrieves relations whose source is the given concept.
func (r *ConceptRepository) GetRelationsForConcept(ctx context.Context, conceptID core.ID) ([]*core.ConceptRelation, error) {
	var results []*core.ConceptRelation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIndexKey(relationSrcPrefix, uint64(conceptID))
		ids, err := scanIndexIDs(tx, prefix)
		if err != nil {
			return err
		}

		for _, id := range ids {
			item, err := tx.Get(makeRecordKey(relationPrefix, id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			var relation *core.ConceptRelation
			if err := item.Value(func(val []byte) error {
				var unmarshalErr error
				relation, unmarshalErr = storage.UnmarshalConceptRelation(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			if relation != nil {
				results = append(results, relation)
			}
		}
		return nil
	}, false)

	return results, err
}

// Helper methods

// makeConceptKey generates a key for a concept by ID.
func makeConceptKey(id core.ID) []byte {
	return makeRecordKey(conceptPrefix, id)
}

// readConcept reads a concept from the transaction.
func readConcept(tx *badger.Txn, key []byte) (*core.Concept, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var concept *core.Concept
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		concept, unmarshalErr = storage.UnmarshalConcept(val)
		return unmarshalErr
	})
	return concept, err
}
