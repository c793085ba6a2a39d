package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

func TestConceptUpsert(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { repos.Close(); backend.Close() }()

	ctx := context.Background()

	owner := core.ID(7)
	concept := &core.Concept{
		OwnerId:     owner,
		Name:        "badgerdb",
		Category:    "technology",
		Description: "An embedded key-value store.",
	}

	created, err := repos.Concepts.UpsertConcept(ctx, concept)
	if err != nil {
		t.Fatalf("Failed to upsert concept: %v", err)
	}
	if created.Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if created.Id != core.IDFromContent(core.ConceptTuple(owner, "badgerdb")) {
		t.Fatal("Expected content-based ID from the concept tuple")
	}

	// Second upsert with the same (owner, name) overwrites metadata
	updated, err := repos.Concepts.UpsertConcept(ctx, &core.Concept{
		OwnerId:     owner,
		Name:        "badgerdb",
		Category:    "software",
		Description: "A pure Go key-value database.",
	})
	if err != nil {
		t.Fatalf("Failed to re-upsert concept: %v", err)
	}
	if updated.Id != created.Id {
		t.Fatalf("Expected stable ID %d, got %d", created.Id, updated.Id)
	}

	retrieved, err := repos.Concepts.GetConcept(ctx, created.Id)
	if err != nil {
		t.Fatalf("Failed to get concept: %v", err)
	}
	if retrieved.Category != "software" {
		t.Fatalf("Expected updated category, got '%s'", retrieved.Category)
	}
	if retrieved.InsertedAt.IsZero() || !retrieved.InsertedAt.Equal(created.InsertedAt) {
		t.Fatal("Expected InsertedAt preserved across upserts")
	}
}

func TestConceptOwnerScoping(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { repos.Close(); backend.Close() }()

	ctx := context.Background()

	// Same name, different owners: distinct concepts
	a, err := repos.Concepts.UpsertConcept(ctx, &core.Concept{OwnerId: 1, Name: "go", Category: "technology"})
	if err != nil {
		t.Fatalf("Failed to upsert concept: %v", err)
	}
	b, err := repos.Concepts.UpsertConcept(ctx, &core.Concept{OwnerId: 2, Name: "go", Category: "technology"})
	if err != nil {
		t.Fatalf("Failed to upsert concept: %v", err)
	}
	if a.Id == b.Id {
		t.Fatal("Expected distinct IDs for different owners")
	}

	found, err := repos.Concepts.FindConceptByName(ctx, 1, "go")
	if err != nil {
		t.Fatalf("Failed to find concept: %v", err)
	}
	if found.Id != a.Id {
		t.Fatalf("Expected concept %d, got %d", a.Id, found.Id)
	}

	_, err = repos.Concepts.FindConceptByName(ctx, 3, "go")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	ownerConcepts, err := repos.Concepts.GetConceptsByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get concepts by owner: %v", err)
	}
	if len(ownerConcepts) != 1 {
		t.Fatalf("Expected 1 concept for owner 1, got %d", len(ownerConcepts))
	}
}

func TestRelationUpsert(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { repos.Close(); backend.Close() }()

	ctx := context.Background()

	relation := &core.ConceptRelation{
		OwnerId:  core.ID(7),
		SourceId: core.ID(1),
		TargetId: core.ID(2),
		Relation: "uses",
	}

	created, err := repos.Concepts.UpsertRelation(ctx, relation)
	if err != nil {
		t.Fatalf("Failed to upsert relation: %v", err)
	}
	if !created {
		t.Fatal("Expected relation to be created")
	}

	// Duplicate is a no-op
	created, err = repos.Concepts.UpsertRelation(ctx, &core.ConceptRelation{
		OwnerId:  core.ID(7),
		SourceId: core.ID(1),
		TargetId: core.ID(2),
		Relation: "uses",
	})
	if err != nil {
		t.Fatalf("Failed to re-upsert relation: %v", err)
	}
	if created {
		t.Fatal("Expected duplicate upsert to be a no-op")
	}

	// Same endpoints, different relation type is a new edge
	created, err = repos.Concepts.UpsertRelation(ctx, &core.ConceptRelation{
		OwnerId:  core.ID(7),
		SourceId: core.ID(1),
		TargetId: core.ID(2),
		Relation: "depends_on",
	})
	if err != nil {
		t.Fatalf("Failed to upsert second relation: %v", err)
	}
	if !created {
		t.Fatal("Expected second relation to be created")
	}

	relations, err := repos.Concepts.GetRelationsForConcept(ctx, core.ID(1))
	if err != nil {
		t.Fatalf("Failed to get relations: %v", err)
	}
	if len(relations) != 2 {
		t.Fatalf("Expected 2 relations, got %d", len(relations))
	}
}
