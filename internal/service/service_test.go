package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nsabot/updatescanner/internal/database"
	"github.com/nsabot/updatescanner/internal/model"
	"github.com/nsabot/updatescanner/internal/webhook"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakePageRepo keeps page records in memory
type fakePageRepo struct {
	records map[string]*model.PageRecord
	html    map[string]string
	nextID  int
}

func newFakePageRepo() *fakePageRepo {
	return &fakePageRepo{
		records: map[string]*model.PageRecord{
			model.RootID: {ID: model.RootID, Type: model.NodeTypeFolder, Title: "root", Children: []string{}},
		},
		html: map[string]string{},
	}
}

func (r *fakePageRepo) LoadPageTree(ctx context.Context) (*model.PageFolder, error) {
	records := make([]model.PageRecord, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, *rec)
	}
	return model.BuildTree(records, model.RootID), nil
}

func (r *fakePageRepo) GetByID(ctx context.Context, id string) (*model.PageRecord, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return rec, nil
}

func (r *fakePageRepo) GetPages(ctx context.Context, ids []string) ([]*model.Page, error) {
	var pages []*model.Page
	for _, id := range ids {
		if rec, ok := r.records[id]; ok && rec.Type == model.NodeTypePage {
			pages = append(pages, rec.ToPage())
		}
	}
	return pages, nil
}

func (r *fakePageRepo) Create(ctx context.Context, parentID string, record *model.PageRecord) error {
	parent, ok := r.records[parentID]
	if !ok || parent.Type != model.NodeTypeFolder {
		return database.ErrInvalidParent
	}
	r.nextID++
	record.ID = fmt.Sprintf("n%d", r.nextID)
	r.records[record.ID] = record
	parent.Children = append(parent.Children, record.ID)
	return nil
}

func (r *fakePageRepo) Update(ctx context.Context, record *model.PageRecord) error {
	existing, ok := r.records[record.ID]
	if !ok || existing.Type != record.Type {
		return database.ErrNotFound
	}
	existing.Title = record.Title
	existing.URL = record.URL
	existing.ScanRateMinutes = record.ScanRateMinutes
	existing.Selector = record.Selector
	return nil
}

func (r *fakePageRepo) Delete(ctx context.Context, id string) error {
	if id == model.RootID {
		return database.ErrRootNotDeletable
	}
	if _, ok := r.records[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *fakePageRepo) LoadHTML(ctx context.Context, pageID string, htmlType model.HTMLType) (string, error) {
	html, ok := r.html[model.PageHTMLID(pageID, htmlType)]
	if !ok {
		return "", database.ErrNotFound
	}
	return html, nil
}

type fakeHistory struct {
	deleted []string
	filter  bson.M
}

func (h *fakeHistory) DeleteByPage(ctx context.Context, pageID string) (int64, error) {
	h.deleted = append(h.deleted, pageID)
	return 1, nil
}

func (h *fakeHistory) List(ctx context.Context, filter bson.M, page, limit int) ([]model.ScanRecord, int64, error) {
	h.filter = filter
	return []model.ScanRecord{{PageID: "a", State: model.StateChanged}}, 1, nil
}

func TestPageService_CreateAndGet(t *testing.T) {
	repo := newFakePageRepo()
	svc := NewPageService(repo, nil)
	ctx := context.Background()

	folder := &model.PageFolder{Title: "News"}
	if err := svc.CreateFolder(ctx, model.RootID, folder); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	page := &model.Page{URL: "https://example.com", LastAutoscanTime: ptrTime(time.Now())}
	if err := svc.CreatePage(ctx, folder.ID, page); err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if page.ID == "" {
		t.Fatal("expected an ID to be assigned")
	}
	if page.LastAutoscanTime != nil {
		t.Error("new pages must start without a scan time")
	}
	if page.Title != "https://example.com" || page.ScanRateMinutes != model.DefaultScanRateMinutes {
		t.Errorf("expected defaults to be applied, got %+v", page)
	}

	node, err := svc.Get(ctx, folder.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, ok := node.(*model.PageFolder)
	if !ok || len(got.Children) != 1 || got.Children[0].NodeID() != page.ID {
		t.Errorf("unexpected folder: %+v", node)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPageService_CreateValidation(t *testing.T) {
	svc := NewPageService(newFakePageRepo(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		page *model.Page
	}{
		{"missing url", &model.Page{}},
		{"bad scheme", &model.Page{URL: "ftp://example.com"}},
		{"negative rate", &model.Page{URL: "https://example.com", ScanRateMinutes: -5}},
		{"bad selector", &model.Page{URL: "https://example.com", Selector: "price"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreatePage(ctx, model.RootID, tt.page)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestPageService_UpdateDispatchesOnNodeType(t *testing.T) {
	repo := newFakePageRepo()
	svc := NewPageService(repo, nil)
	ctx := context.Background()

	folder := &model.PageFolder{Title: "Old"}
	if err := svc.CreateFolder(ctx, model.RootID, folder); err != nil {
		t.Fatal(err)
	}
	page := &model.Page{URL: "https://example.com", ScanRateMinutes: 10}
	if err := svc.CreatePage(ctx, model.RootID, page); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(ctx, folder.ID, &model.Page{Title: "New"}); err != nil {
		t.Fatalf("rename folder: %v", err)
	}
	if repo.records[folder.ID].Title != "New" {
		t.Errorf("folder title = %q", repo.records[folder.ID].Title)
	}

	if _, err := svc.Update(ctx, page.ID, &model.Page{URL: "https://example.org", ScanRateMinutes: 30}); err != nil {
		t.Fatalf("update page: %v", err)
	}
	if rec := repo.records[page.ID]; rec.URL != "https://example.org" || rec.ScanRateMinutes != 30 {
		t.Errorf("unexpected record: %+v", rec)
	}

	if _, err := svc.Update(ctx, "missing", &model.Page{URL: "https://example.org"}); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPageService_DeleteRemovesHistory(t *testing.T) {
	repo := newFakePageRepo()
	history := &fakeHistory{}
	svc := NewPageService(repo, history)
	ctx := context.Background()

	page := &model.Page{URL: "https://example.com"}
	if err := svc.CreatePage(ctx, model.RootID, page); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, page.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(history.deleted) != 1 || history.deleted[0] != page.ID {
		t.Errorf("expected history of %s to be deleted, got %v", page.ID, history.deleted)
	}

	if err := svc.Delete(ctx, model.RootID); !errors.Is(err, database.ErrRootNotDeletable) {
		t.Errorf("expected ErrRootNotDeletable, got %v", err)
	}
}

func TestPageService_HTML(t *testing.T) {
	repo := newFakePageRepo()
	repo.html["a:new"] = "<p>hi</p>"
	svc := NewPageService(repo, nil)
	ctx := context.Background()

	html, err := svc.HTML(ctx, "a", model.HTMLNew)
	if err != nil || html != "<p>hi</p>" {
		t.Errorf("HTML = %q, %v", html, err)
	}
	if _, err := svc.HTML(ctx, "a", model.HTMLOld); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.HTML(ctx, "a", "diff"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestPageService_Pages(t *testing.T) {
	repo := newFakePageRepo()
	svc := NewPageService(repo, nil)
	ctx := context.Background()

	page := &model.Page{URL: "https://example.com"}
	if err := svc.CreatePage(ctx, model.RootID, page); err != nil {
		t.Fatal(err)
	}

	pages, err := svc.Pages(ctx, []string{page.ID})
	if err != nil || len(pages) != 1 {
		t.Fatalf("Pages = %v, %v", pages, err)
	}
	if _, err := svc.Pages(ctx, []string{page.ID, model.RootID}); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("folders are not scannable, got %v", err)
	}
}

func TestHistoryService_BuildsFilter(t *testing.T) {
	history := &fakeHistory{}
	svc := NewHistoryService(history)

	summaries, total, err := svc.List(context.Background(), HistoryFilter{
		PageID: "a",
		State:  "changed",
		From:   "2024-01-01T00:00:00Z",
	}, 1, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(summaries) != 1 || summaries[0].State != "changed" {
		t.Errorf("unexpected result: %d %+v", total, summaries)
	}
	if history.filter["page_id"] != "a" || history.filter["state"] != "changed" {
		t.Errorf("unexpected filter: %v", history.filter)
	}
	rng, ok := history.filter["scanned_at"].(bson.M)
	from, _ := rng["$gte"].(time.Time)
	if !ok || !from.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected time range: %v", history.filter["scanned_at"])
	}

	if _, _, err := svc.List(context.Background(), HistoryFilter{To: "yesterday"}, 1, 20); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	created []*model.Notification
	filter  bson.M
	acked   primitive.ObjectID
	ackBy   string
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, n)
	return nil
}

func (r *fakeNotificationRepo) List(ctx context.Context, filter bson.M, page, limit int) ([]model.Notification, int64, error) {
	r.filter = filter
	return []model.Notification{{ID: primitive.NewObjectID(), FinalStatus: "delivered"}}, 1, nil
}

func (r *fakeNotificationRepo) Acknowledge(ctx context.Context, id primitive.ObjectID, by string, at time.Time) error {
	r.acked = id
	r.ackBy = by
	return nil
}

func TestNotificationService(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo)
	ctx := context.Background()

	summaries, _, err := svc.List(ctx, "", "open", "", "", 1, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 || summaries[0].AcknowledgmentStatus != "open" {
		t.Errorf("unexpected summaries: %+v", summaries)
	}
	if _, ok := repo.filter["$or"]; !ok {
		t.Errorf("expected open filter to match missing status, got %v", repo.filter)
	}

	id := primitive.NewObjectID()
	if err := svc.Acknowledge(ctx, id.Hex(), "ops"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if repo.acked != id || repo.ackBy != "ops" {
		t.Errorf("unexpected acknowledgement: %v %q", repo.acked, repo.ackBy)
	}

	if err := svc.Acknowledge(ctx, "nope", "ops"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for bad id, got %v", err)
	}
	if err := svc.Acknowledge(ctx, id.Hex(), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for missing user, got %v", err)
	}
}

type fakeSender struct {
	payload webhook.ChangePayload
	err     error
}

func (s *fakeSender) Send(ctx context.Context, hook model.Webhook, payload webhook.ChangePayload, batchID string) (*model.Notification, error) {
	s.payload = payload
	return &model.Notification{BatchID: batchID, WebhookURL: hook.URL, FinalStatus: "failed"}, s.err
}

func TestChangeNotifier(t *testing.T) {
	if _, err := NewChangeNotifier("not a url", &fakeSender{}, &fakeNotificationRepo{}); err == nil {
		t.Fatal("expected invalid webhook URL to be rejected")
	}

	sender := &fakeSender{err: errors.New("unreachable")}
	logs := &fakeNotificationRepo{}
	notifier, err := NewChangeNotifier("https://hooks.example.com/x", sender, logs)
	if err != nil {
		t.Fatal(err)
	}

	notifier.NotifyChanges(context.Background(), "batch-1", model.TriggerAutoscan, []model.ChangedPage{{PageID: "a", Title: "A"}})

	if sender.payload.Text != "1 page has changed: A" {
		t.Errorf("unexpected payload text %q", sender.payload.Text)
	}
	if len(logs.created) != 1 || logs.created[0].BatchID != "batch-1" {
		t.Errorf("expected failed delivery to be logged, got %+v", logs.created)
	}
}

type fakeScanner struct {
	mu      sync.Mutex
	pages   []*model.Page
	trigger model.ScanTrigger
	err     error
	done    chan struct{}
}

func (s *fakeScanner) ScanWithTrigger(ctx context.Context, pages []*model.Page, trigger model.ScanTrigger) (*model.ScanBatch, error) {
	s.mu.Lock()
	s.pages = pages
	s.trigger = trigger
	s.mu.Unlock()
	if s.done != nil {
		defer close(s.done)
	}
	return &model.ScanBatch{BatchID: "b", Trigger: trigger}, s.err
}

func TestScanService_Sync(t *testing.T) {
	repo := newFakePageRepo()
	pages := NewPageService(repo, nil)
	page := &model.Page{URL: "https://example.com"}
	if err := pages.CreatePage(context.Background(), model.RootID, page); err != nil {
		t.Fatal(err)
	}

	scanner := &fakeScanner{}
	svc := NewScanService(context.Background(), scanner, pages)

	batch, err := svc.Scan(context.Background(), []string{page.ID})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if batch.Trigger != model.TriggerManual || len(scanner.pages) != 1 {
		t.Errorf("unexpected scan: %+v %+v", batch, scanner.pages)
	}

	if _, err := svc.Scan(context.Background(), nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Scan(context.Background(), []string{"missing"}); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScanService_AsyncJob(t *testing.T) {
	repo := newFakePageRepo()
	pages := NewPageService(repo, nil)
	page := &model.Page{URL: "https://example.com"}
	if err := pages.CreatePage(context.Background(), model.RootID, page); err != nil {
		t.Fatal(err)
	}

	scanner := &fakeScanner{err: errors.New("page x: store offline"), done: make(chan struct{})}
	svc := NewScanService(context.Background(), scanner, pages)

	jobID, err := svc.SubmitJob(context.Background(), []string{page.ID})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	select {
	case <-scanner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, ok := svc.GetJobStatus(jobID)
		if !ok {
			t.Fatal("job status missing")
		}
		if status.Status == "failed" {
			if status.Error != "page x: store offline" || status.Result == nil {
				t.Errorf("unexpected status: %+v", status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", status.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := svc.GetJobStatus("unknown"); ok {
		t.Error("unknown job must not be found")
	}
}

type fakeSettingsRepo struct {
	saved map[string]interface{}
}

func (r *fakeSettingsRepo) GetSetting(ctx context.Context, name string) (*model.Setting, error) {
	return &model.Setting{Name: name, Value: r.saved[name]}, nil
}

func (r *fakeSettingsRepo) SaveSetting(ctx context.Context, name string, value interface{}) error {
	r.saved[name] = value
	return nil
}

type fakeRearmer struct {
	calls int
	err   error
}

func (r *fakeRearmer) Initialize(ctx context.Context) error {
	r.calls++
	return r.err
}

func TestSettingsService(t *testing.T) {
	repo := &fakeSettingsRepo{saved: map[string]interface{}{}}
	rearm := &fakeRearmer{}
	svc := NewSettingsService(repo, rearm)
	ctx := context.Background()

	if err := svc.Put(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if rearm.calls != 0 {
		t.Error("unrelated settings must not re-arm autoscan")
	}

	if err := svc.Put(ctx, "debug", true); err != nil {
		t.Fatalf("Put debug: %v", err)
	}
	if rearm.calls != 1 {
		t.Errorf("expected one re-arm, got %d", rearm.calls)
	}

	setting, err := svc.Get(ctx, "debug")
	if err != nil || setting.Value != true {
		t.Errorf("Get = %+v, %v", setting, err)
	}

	if err := svc.Put(ctx, "$bad", 1); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	for _, bad := range []interface{}{"banana", map[string]interface{}{"enabled": false}, []interface{}{}, 1} {
		if err := svc.Put(ctx, "debug", bad); !errors.Is(err, ErrValidation) {
			t.Errorf("Put(debug, %#v): expected ErrValidation, got %v", bad, err)
		}
	}
	if rearm.calls != 1 || repo.saved["debug"] != true {
		t.Errorf("rejected debug values must not be stored or re-armed, calls=%d value=%v", rearm.calls, repo.saved["debug"])
	}

	rearm.err = errors.New("settings store down")
	if err := svc.Put(ctx, "debug", false); err == nil {
		t.Error("expected re-arm failure to be reported")
	}
	if repo.saved["debug"] != true {
		t.Errorf("expected previous debug value to be restored, got %v", repo.saved["debug"])
	}
}

func TestSettingsService_DebugWithoutAutoscan(t *testing.T) {
	repo := &fakeSettingsRepo{saved: map[string]interface{}{}}
	svc := NewSettingsService(repo, nil)

	if err := svc.Put(context.Background(), "debug", "true"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := svc.Put(context.Background(), "debug", "banana"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if repo.saved["debug"] != "true" {
		t.Errorf("unexpected stored value %v", repo.saved["debug"])
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
