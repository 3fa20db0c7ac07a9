package server

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedTestUsers(t *testing.T, store *Store) map[string]User {
	t.Helper()
	ctx := context.Background()
	if err := store.Seed(ctx, DemoUsers()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	users := make(map[string]User)
	for _, su := range DemoUsers() {
		u, err := store.UserByUsername(ctx, su.Username)
		if err != nil {
			t.Fatalf("lookup %s: %v", su.Username, err)
		}
		users[su.Username] = u
	}
	return users
}

func TestStore_SeedIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Seed(ctx, DemoUsers()); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := store.Seed(ctx, DemoUsers()); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	users, err := store.ListUsers(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != len(DemoUsers()) {
		t.Fatalf("expected %d users, got %d", len(DemoUsers()), len(users))
	}
}

func TestStore_ListUsersRoleFilter(t *testing.T) {
	store := openTestStore(t)
	seedTestUsers(t, store)

	parents := false
	users, err := store.ListUsers(context.Background(), &parents)
	if err != nil {
		t.Fatalf("list parents: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 parents, got %d", len(users))
	}
	for _, u := range users {
		if u.Director {
			t.Fatalf("parent filter returned director %s", u.Username)
		}
	}
}

func TestStore_DirectorSeesInstitutionInbox(t *testing.T) {
	store := openTestStore(t)
	users := seedTestUsers(t, store)
	ctx := context.Background()

	anna, maria, jan := users["akowalska"], users["mdyrektor"], users["jwice"]

	// Anna writes to Jan; Maria (peer director) must still see it.
	if _, err := store.InsertMessage(ctx, anna.ID, jan.ID, "Pickup", "Running late today"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	msgs, err := store.MessagesVisibleTo(ctx, maria.ID, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("director must see peer-handled traffic, got %d messages", len(msgs))
	}
	if msgs[0].SenderName != "Anna Kowalska" {
		t.Fatalf("sender name not denormalized: %q", msgs[0].SenderName)
	}

	// Anna herself only sees her own traffic.
	own, err := store.MessagesVisibleTo(ctx, anna.ID, false)
	if err != nil {
		t.Fatalf("list own: %v", err)
	}
	if len(own) != 1 {
		t.Fatalf("sender must see own message, got %d", len(own))
	}
}

func TestStore_MarkReadIsScopedToCounterpart(t *testing.T) {
	store := openTestStore(t)
	users := seedTestUsers(t, store)
	ctx := context.Background()

	anna, piotr, maria := users["akowalska"], users["pnowak"], users["mdyrektor"]

	if _, err := store.InsertMessage(ctx, anna.ID, maria.ID, "", "from anna"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.InsertMessage(ctx, piotr.ID, maria.ID, "", "from piotr"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := store.MarkReadFrom(ctx, maria.ID, anna.ID, true)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 marked, got %d", n)
	}

	msgs, err := store.MessagesVisibleTo(ctx, maria.ID, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, m := range msgs {
		switch m.SenderID {
		case anna.ID:
			if !m.Read {
				t.Fatalf("anna's message must be read")
			}
		case piotr.ID:
			if m.Read {
				t.Fatalf("piotr's thread must be untouched by anna's mark-read")
			}
		}
	}
}

func TestStore_SharedInboxMarkReadCoversPeerDirectors(t *testing.T) {
	store := openTestStore(t)
	users := seedTestUsers(t, store)
	ctx := context.Background()

	anna, maria, jan := users["akowalska"], users["mdyrektor"], users["jwice"]

	// Anna wrote to Jan; Maria opens the institution thread with Anna.
	if _, err := store.InsertMessage(ctx, anna.ID, jan.ID, "", "for whichever director"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := store.MarkReadFrom(ctx, maria.ID, anna.ID, true)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 1 {
		t.Fatalf("shared inbox mark-read must cover peer directors, marked %d", n)
	}

	// A parent's mark-read stays inside their own inbox: Maria's note
	// to Jan is not Anna's to flip.
	if _, err := store.InsertMessage(ctx, maria.ID, jan.ID, "", "internal note"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	n, err = store.MarkReadFrom(ctx, anna.ID, maria.ID, false)
	if err != nil {
		t.Fatalf("parent mark read: %v", err)
	}
	if n != 0 {
		t.Fatalf("parent mark-read must not reach other inboxes, marked %d", n)
	}
}

func TestStore_PresenceFlag(t *testing.T) {
	store := openTestStore(t)
	users := seedTestUsers(t, store)
	ctx := context.Background()

	anna := users["akowalska"]
	if err := store.SetOnline(ctx, anna.ID, true); err != nil {
		t.Fatalf("set online: %v", err)
	}
	got, err := store.UserByID(ctx, anna.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !got.Online {
		t.Fatalf("presence flag not persisted")
	}
}
