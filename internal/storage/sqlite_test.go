package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndGetDocument(t *testing.T) {
	s := openTestStore(t)

	id, err := s.SaveDocument(Document{
		Filename:      "lecture1.pdf",
		Filetype:      "pdf",
		ExtractedText: "stacks and queues",
		UploaderID:    "u1",
	})
	if err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if id != 1 {
		t.Errorf("first document id = %d, want 1", id)
	}

	doc, err := s.GetDocument(id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Filename != "lecture1.pdf" || doc.Filetype != "pdf" {
		t.Errorf("got %+v", doc)
	}
	if doc.ExtractedText != "stacks and queues" {
		t.Errorf("ExtractedText = %q", doc.ExtractedText)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestStore_DocumentIDsMonotonic(t *testing.T) {
	s := openTestStore(t)

	var prev int64
	for i := 0; i < 3; i++ {
		id, err := s.SaveDocument(Document{Filename: "f", Filetype: "txt", ExtractedText: "x"})
		if err != nil {
			t.Fatalf("SaveDocument %d: %v", i, err)
		}
		if id <= prev {
			t.Errorf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestStore_GetDocumentNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetDocument(42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestStore_ListDocuments(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"a.pdf", "b.docx", "c.pptx"} {
		if _, err := s.SaveDocument(Document{Filename: name, Filetype: "x", ExtractedText: "t"}); err != nil {
			t.Fatalf("SaveDocument(%s): %v", name, err)
		}
	}

	docs, err := s.ListDocuments()
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d documents, want 3", len(docs))
	}
	for i, want := range []string{"a.pdf", "b.docx", "c.pptx"} {
		if docs[i].Filename != want {
			t.Errorf("docs[%d] = %q, want %q", i, docs[i].Filename, want)
		}
	}
	// Listing omits the text body.
	if docs[0].ExtractedText != "" {
		t.Error("ListDocuments returned extracted text")
	}
}

func TestStore_Interactions(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"i1", "i2", "i3"} {
		err := s.SaveInteraction(Interaction{
			ID:        id,
			Question:  "q-" + id,
			Response:  "r-" + id,
			UserID:    "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveInteraction(%s): %v", id, err)
		}
	}

	recent, err := s.GetRecentInteractions(2)
	if err != nil {
		t.Fatalf("GetRecentInteractions: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d interactions, want 2", len(recent))
	}
	// Newest first.
	if recent[0].ID != "i3" || recent[1].ID != "i2" {
		t.Errorf("order = %s, %s; want i3, i2", recent[0].ID, recent[1].ID)
	}
	if recent[0].Question != "q-i3" || recent[0].Response != "r-i3" {
		t.Errorf("got %+v", recent[0])
	}
}

func TestStore_MigrationsApplied(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Errorf("versions = %v, want [1 ...]", versions)
	}
}
