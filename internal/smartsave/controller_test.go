package smartsave

import (
	"context"
	"errors"
	"testing"

	"github.com/plateful/plate-backend/internal/dedup"
	"github.com/plateful/plate-backend/internal/domain"
	"github.com/plateful/plate-backend/internal/services"
)

type fakeSaver struct {
	saveRes *services.SaveResult
	saveErr error

	confirmItem *domain.SavedItem
	confirmErr  error

	saveCalls    int
	confirmCalls int
	lastUserID   string
	lastParams   services.SaveParams
}

func (f *fakeSaver) SaveEnhanced(ctx context.Context, userID string, p services.SaveParams) (*services.SaveResult, error) {
	f.saveCalls++
	f.lastUserID = userID
	f.lastParams = p
	return f.saveRes, f.saveErr
}

func (f *fakeSaver) ConfirmSave(ctx context.Context, userID string, p services.SaveParams) (*domain.SavedItem, error) {
	f.confirmCalls++
	f.lastUserID = userID
	f.lastParams = p
	return f.confirmItem, f.confirmErr
}

func recipeParams() services.SaveParams {
	return services.SaveParams{
		ItemType: domain.ItemTypeRecipe,
		ItemID:   "52772",
		Metadata: domain.RecipeMetadata{Title: "Teriyaki Chicken"},
	}
}

func TestControllerStartsIdle(t *testing.T) {
	c := NewController(&fakeSaver{}, "u1")

	st := c.Snapshot()
	if st.Status != StatusIdle || st.Checking || st.Saving {
		t.Fatalf("fresh controller state = %+v", st)
	}
}

func TestSaveCleanItem(t *testing.T) {
	item := &domain.SavedItem{ID: "row1", UserID: "u1", ItemType: domain.ItemTypeRecipe, ItemID: "52772"}
	f := &fakeSaver{saveRes: &services.SaveResult{Item: item, Check: &dedup.CheckResult{}}}
	c := NewController(f, "u1")

	st := c.Save(context.Background(), recipeParams())
	if st.Status != StatusSaved {
		t.Fatalf("status = %s, want %s", st.Status, StatusSaved)
	}
	if st.AlreadySaved || st.NeedsConfirmation {
		t.Fatalf("clean save flagged: %+v", st)
	}
	if st.SavedItem == nil || st.SavedItem.ID != "row1" {
		t.Fatalf("saved item not surfaced: %+v", st.SavedItem)
	}
	if f.lastUserID != "u1" || f.saveCalls != 1 {
		t.Fatalf("saver called %d times for %q", f.saveCalls, f.lastUserID)
	}
}

func TestSaveExactDuplicate(t *testing.T) {
	item := &domain.SavedItem{ID: "row1"}
	f := &fakeSaver{saveRes: &services.SaveResult{
		Item:        item,
		IsDuplicate: true,
		Check:       &dedup.CheckResult{ExactDuplicate: item},
	}}
	c := NewController(f, "u1")

	st := c.Save(context.Background(), recipeParams())
	if st.Status != StatusSaved || !st.AlreadySaved {
		t.Fatalf("exact duplicate should land in saved with AlreadySaved, got %+v", st)
	}
	if st.NeedsConfirmation {
		t.Fatalf("exact duplicate must not ask for confirmation")
	}
}

func TestSaveSimilarItemNeedsConfirmation(t *testing.T) {
	item := &domain.SavedItem{ID: "row1"}
	check := &dedup.CheckResult{
		ShouldWarn:   true,
		SimilarItems: []domain.SavedItem{{ID: "row0"}},
	}
	f := &fakeSaver{saveRes: &services.SaveResult{Item: item, Check: check}}
	c := NewController(f, "u1")

	st := c.Save(context.Background(), recipeParams())
	if st.Status != StatusDuplicateFound || !st.NeedsConfirmation {
		t.Fatalf("similar item should require confirmation, got %+v", st)
	}
	if st.DuplicateCheck == nil || len(st.DuplicateCheck.SimilarItems) != 1 {
		t.Fatalf("duplicate detail missing: %+v", st.DuplicateCheck)
	}
	// The item was persisted up front; the dialog only decides presentation.
	if st.SavedItem == nil {
		t.Fatalf("persisted item missing from state")
	}
}

func TestSaveErrorState(t *testing.T) {
	f := &fakeSaver{saveErr: errors.New("database is locked")}
	c := NewController(f, "u1")

	st := c.Save(context.Background(), recipeParams())
	if st.Status != StatusError || st.Err == "" {
		t.Fatalf("save failure state = %+v", st)
	}
	if st.SavedItem != nil {
		t.Fatalf("error state must not carry an item")
	}
}

func TestConfirmAfterWarning(t *testing.T) {
	item := &domain.SavedItem{ID: "row1"}
	f := &fakeSaver{
		saveRes:     &services.SaveResult{Item: item, Check: &dedup.CheckResult{ShouldWarn: true}},
		confirmItem: item,
	}
	c := NewController(f, "u1")
	ctx := context.Background()
	p := recipeParams()

	if st := c.Save(ctx, p); st.Status != StatusDuplicateFound {
		t.Fatalf("setup: %+v", st)
	}
	st := c.Confirm(ctx, p)
	if st.Status != StatusSaved || st.NeedsConfirmation {
		t.Fatalf("confirm state = %+v", st)
	}
	if f.confirmCalls != 1 {
		t.Fatalf("confirm calls = %d", f.confirmCalls)
	}
}

func TestConfirmError(t *testing.T) {
	f := &fakeSaver{confirmErr: errors.New("gone away")}
	c := NewController(f, "u1")

	st := c.Confirm(context.Background(), recipeParams())
	if st.Status != StatusError || st.Err != "gone away" {
		t.Fatalf("confirm failure state = %+v", st)
	}
}

func TestResetClearsState(t *testing.T) {
	f := &fakeSaver{saveErr: errors.New("boom")}
	c := NewController(f, "u1")

	c.Save(context.Background(), recipeParams())
	c.Reset()

	st := c.Snapshot()
	if st.Status != StatusIdle || st.Err != "" || st.SavedItem != nil {
		t.Fatalf("reset state = %+v", st)
	}
}
