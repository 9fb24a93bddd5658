package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nsabot/updatescanner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockDB(mt *mtest.T) *MongoDB {
	return &MongoDB{Client: mt.Client, Database: mt.DB}
}

func pageDoc(id, parent, url string, rate float64) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "type", Value: "page"},
		{Key: "title", Value: id},
		{Key: "parent_id", Value: parent},
		{Key: "url", Value: url},
		{Key: "scan_rate_minutes", Value: rate},
	}
}

func folderDoc(id, parent string, children ...string) bson.D {
	arr := bson.A{}
	for _, c := range children {
		arr = append(arr, c)
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "type", Value: "folder"},
		{Key: "title", Value: id},
		{Key: "parent_id", Value: parent},
		{Key: "children", Value: arr},
	}
}

func TestPageRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("load page tree", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.pages", mtest.FirstBatch,
			folderDoc(model.RootID, "", "p1", "f1"),
			pageDoc("p1", model.RootID, "http://one", 15),
			folderDoc("f1", model.RootID, "p2"),
			pageDoc("p2", "f1", "http://two", 30),
		))

		root, err := repo.LoadPageTree(context.Background())
		if err != nil {
			mt.Fatalf("LoadPageTree: %v", err)
		}
		pages := model.Flatten(root)
		if len(pages) != 2 || pages[0].ID != "p1" || pages[1].ID != "p2" {
			mt.Fatalf("unexpected pages: %+v", pages)
		}
		if pages[1].ScanRateMinutes != 30 {
			mt.Errorf("ScanRateMinutes = %v, want 30", pages[1].ScanRateMinutes)
		}
	})

	mt.Run("load page tree failure", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 11600, Message: "interrupted at shutdown", Name: "InterruptedAtShutdown",
		}))

		if _, err := repo.LoadPageTree(context.Background()); err == nil {
			mt.Fatal("expected error")
		}
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.pages", mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	mt.Run("get pages keeps requested order", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.pages", mtest.FirstBatch,
			pageDoc("a", model.RootID, "http://a", 5),
			pageDoc("b", model.RootID, "http://b", 5),
		))

		pages, err := repo.GetPages(context.Background(), []string{"b", "missing", "a"})
		if err != nil {
			mt.Fatalf("GetPages: %v", err)
		}
		if len(pages) != 2 || pages[0].ID != "b" || pages[1].ID != "a" {
			mt.Errorf("unexpected pages: %+v", pages)
		}
	})

	mt.Run("create attaches to parent", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.pages", mtest.FirstBatch, folderDoc(model.RootID, "")),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		rec := model.RecordFromPage(&model.Page{Title: "one", URL: "http://one", ScanRateMinutes: 5}, "")
		if err := repo.Create(context.Background(), model.RootID, rec); err != nil {
			mt.Fatalf("Create: %v", err)
		}
		if rec.ID == "" || rec.ParentID != model.RootID {
			mt.Errorf("unexpected record after create: %+v", rec)
		}
		if rec.Metadata.CreatedAt.IsZero() {
			mt.Error("expected created_at to be set")
		}
	})

	mt.Run("create under page is rejected", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.pages", mtest.FirstBatch,
			pageDoc("p1", model.RootID, "http://one", 5),
		))

		rec := model.RecordFromPage(&model.Page{URL: "http://two"}, "")
		if err := repo.Create(context.Background(), "p1", rec); !errors.Is(err, ErrInvalidParent) {
			mt.Fatalf("expected ErrInvalidParent, got %v", err)
		}
	})

	mt.Run("update not found", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.Update(context.Background(), &model.PageRecord{ID: "p9", Type: model.NodeTypePage, URL: "http://x"})
		if !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	mt.Run("delete root is rejected", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		if err := repo.Delete(context.Background(), model.RootID); !errors.Is(err, ErrRootNotDeletable) {
			mt.Fatalf("expected ErrRootNotDeletable, got %v", err)
		}
	})

	mt.Run("delete non-empty folder is rejected", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.pages", mtest.FirstBatch,
			folderDoc("f1", model.RootID, "p1"),
		))

		if err := repo.Delete(context.Background(), "f1"); !errors.Is(err, ErrFolderNotEmpty) {
			mt.Fatalf("expected ErrFolderNotEmpty, got %v", err)
		}
	})

	mt.Run("delete page", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.pages", mtest.FirstBatch, pageDoc("p1", model.RootID, "http://one", 5)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
		)

		if err := repo.Delete(context.Background(), "p1"); err != nil {
			mt.Fatalf("Delete: %v", err)
		}
	})

	mt.Run("update scan state", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		err := repo.UpdateScanState(context.Background(), "p1", model.StateChanged, time.Now().UTC(), true)
		if err != nil {
			mt.Fatalf("UpdateScanState: %v", err)
		}
	})

	mt.Run("load html", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.page_html", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "p1:new"},
			{Key: "page_id", Value: "p1"},
			{Key: "type", Value: "new"},
			{Key: "html", Value: "<p>hello</p>"},
		}))

		html, err := repo.LoadHTML(context.Background(), "p1", model.HTMLNew)
		if err != nil {
			mt.Fatalf("LoadHTML: %v", err)
		}
		if html != "<p>hello</p>" {
			mt.Errorf("html = %q", html)
		}
	})

	mt.Run("load html missing", func(mt *mtest.T) {
		repo := NewPageRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.page_html", mtest.FirstBatch))

		if _, err := repo.LoadHTML(context.Background(), "p1", model.HTMLOld); !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSettingsRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("falls back to default", func(mt *mtest.T) {
		repo := NewSettingsRepository(newMockDB(mt), map[string]interface{}{"debug": true})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.settings", mtest.FirstBatch))

		v, err := repo.LoadSetting(context.Background(), "debug")
		if err != nil {
			mt.Fatalf("LoadSetting: %v", err)
		}
		if v != true {
			mt.Errorf("value = %v, want true", v)
		}
	})

	mt.Run("unknown name is nil", func(mt *mtest.T) {
		repo := NewSettingsRepository(newMockDB(mt), nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.settings", mtest.FirstBatch))

		v, err := repo.LoadSetting(context.Background(), "nothing")
		if err != nil || v != nil {
			mt.Errorf("LoadSetting = %v, %v; want nil, nil", v, err)
		}
	})

	mt.Run("stored value wins", func(mt *mtest.T) {
		repo := NewSettingsRepository(newMockDB(mt), map[string]interface{}{"debug": true})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.settings", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "debug"},
			{Key: "value", Value: false},
		}))

		v, err := repo.LoadSetting(context.Background(), "debug")
		if err != nil {
			mt.Fatalf("LoadSetting: %v", err)
		}
		if v != false {
			mt.Errorf("value = %v, want false", v)
		}
	})

	mt.Run("load failure", func(mt *mtest.T) {
		repo := NewSettingsRepository(newMockDB(mt), nil)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 13, Message: "unauthorized", Name: "Unauthorized",
		}))

		if _, err := repo.LoadSetting(context.Background(), "debug"); err == nil {
			mt.Fatal("expected error")
		}
	})

	mt.Run("save", func(mt *mtest.T) {
		repo := NewSettingsRepository(newMockDB(mt), nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		if err := repo.SaveSetting(context.Background(), "debug", true); err != nil {
			mt.Fatalf("SaveSetting: %v", err)
		}
	})
}

func TestLockRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("acquire", func(mt *mtest.T) {
		repo := NewLockRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "p1"},
			{Key: "locked_by", Value: "scanner-a"},
			{Key: "locked_at", Value: time.Now().UTC()},
			{Key: "expires_at", Value: time.Now().UTC().Add(time.Minute)},
		}}))

		ok, err := repo.AcquireLock(context.Background(), "p1", "scanner-a", time.Minute)
		if err != nil || !ok {
			mt.Fatalf("AcquireLock = %v, %v; want true, nil", ok, err)
		}
	})

	mt.Run("held elsewhere", func(mt *mtest.T) {
		repo := NewLockRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 11000, Message: "E11000 duplicate key error", Name: "DuplicateKey",
		}))

		ok, err := repo.AcquireLock(context.Background(), "p1", "scanner-b", time.Minute)
		if err != nil || ok {
			mt.Fatalf("AcquireLock = %v, %v; want false, nil", ok, err)
		}
	})

	mt.Run("release", func(mt *mtest.T) {
		repo := NewLockRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		if err := repo.ReleaseLock(context.Background(), "p1", "scanner-a"); err != nil {
			mt.Fatalf("ReleaseLock: %v", err)
		}
	})
}

func TestNotificationRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create sets defaults", func(mt *mtest.T) {
		repo := NewNotificationRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		n := &model.Notification{BatchID: "b1"}
		if err := repo.Create(context.Background(), n); err != nil {
			mt.Fatalf("Create: %v", err)
		}
		if n.ID.IsZero() || n.AcknowledgmentStatus != "open" {
			mt.Errorf("unexpected notification: %+v", n)
		}
	})

	mt.Run("acknowledge not found", func(mt *mtest.T) {
		repo := NewNotificationRepository(newMockDB(mt))
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.Acknowledge(context.Background(), primitive.NewObjectID(), "ops", time.Now())
		if !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestScanHistoryRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("list", func(mt *mtest.T) {
		repo := NewScanHistoryRepository(newMockDB(mt))
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.scan_history", mtest.FirstBatch, bson.D{{Key: "n", Value: 2}}),
			mtest.CreateCursorResponse(0, "test.scan_history", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "page_id", Value: "p1"}, {Key: "state", Value: "changed"}},
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "page_id", Value: "p2"}, {Key: "state", Value: "no_change"}},
			),
		)

		records, total, err := repo.List(context.Background(), bson.M{}, 1, 20)
		if err != nil {
			mt.Fatalf("List: %v", err)
		}
		if total != 2 || len(records) != 2 {
			mt.Fatalf("got %d records, total %d", len(records), total)
		}
		if records[0].State != model.StateChanged {
			mt.Errorf("State = %q, want changed", records[0].State)
		}
	})
}
