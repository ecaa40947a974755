package usecase

import (
	"context"
	"time"

	"github.com/rentifier/rentifier/internal/domain"
)

// In-memory port fakes shared by the job service tests.

type fakeSourceRepo struct {
	sources    []domain.Source
	listErr    error
	states     map[int64]domain.SourceState
	stateErr   error
	updates    []domain.SourceState
	updateErr  error
	sourceByID map[int64]domain.Source
}

func (f *fakeSourceRepo) ListEnabled(context.Context) ([]domain.Source, error) {
	return f.sources, f.listErr
}

func (f *fakeSourceRepo) Get(_ context.Context, id int64) (domain.Source, error) {
	if src, ok := f.sourceByID[id]; ok {
		return src, nil
	}
	return domain.Source{}, domain.ErrNotFound
}

func (f *fakeSourceRepo) GetState(_ context.Context, sourceID int64) (domain.SourceState, error) {
	if f.stateErr != nil {
		return domain.SourceState{}, f.stateErr
	}
	return f.states[sourceID], nil
}

func (f *fakeSourceRepo) UpdateState(_ context.Context, st domain.SourceState) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, st)
	return nil
}

func (f *fakeSourceRepo) lastUpdateFor(sourceID int64) (domain.SourceState, bool) {
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].SourceID == sourceID {
			return f.updates[i], true
		}
	}
	return domain.SourceState{}, false
}

type fakeCityRepo struct {
	cities []domain.MonitoredCity
	err    error
}

func (f *fakeCityRepo) EnabledCities(context.Context) ([]domain.MonitoredCity, error) {
	return f.cities, f.err
}

type fakeRawRepo struct {
	batches     [][]domain.RawListing
	insertErr   error
	unprocessed []domain.RawListing
	listErr     error
}

func (f *fakeRawRepo) InsertBatch(_ context.Context, rows []domain.RawListing) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.batches = append(f.batches, rows)
	return int64(len(rows)), nil
}

func (f *fakeRawRepo) ListUnprocessed(_ context.Context, limit int) ([]domain.RawListing, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.unprocessed) > limit {
		return f.unprocessed[:limit], nil
	}
	return f.unprocessed, nil
}

type fakeConnector struct {
	name      string
	fetch     func(ctx context.Context, cursor []byte, view domain.ConnectorStore) (domain.FetchResult, error)
	normalize func(c domain.ListingCandidate) (domain.ListingDraft, error)
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) FetchNew(ctx context.Context, cursor []byte, view domain.ConnectorStore) (domain.FetchResult, error) {
	return f.fetch(ctx, cursor, view)
}

func (f *fakeConnector) Normalize(c domain.ListingCandidate) (domain.ListingDraft, error) {
	if f.normalize == nil {
		return domain.ListingDraft{Title: c.RawTitle, Description: c.RawDescription}, nil
	}
	return f.normalize(c)
}

type fakeRegistry map[string]domain.Connector

func (f fakeRegistry) Lookup(name string) (domain.Connector, bool) {
	c, ok := f[name]
	return c, ok
}

type fakeListingRepo struct {
	upserts   []domain.Listing
	rawIDs    []string
	upsertErr error
	listings  []domain.Listing
	since     time.Time
	listErr   error
}

func (f *fakeListingRepo) UpsertWithRaw(_ context.Context, l domain.Listing, rawID string) (domain.Listing, error) {
	if f.upsertErr != nil {
		return domain.Listing{}, f.upsertErr
	}
	l.ID = "listing-" + rawID
	f.upserts = append(f.upserts, l)
	f.rawIDs = append(f.rawIDs, rawID)
	return l, nil
}

func (f *fakeListingRepo) ListIngestedSince(_ context.Context, since time.Time) ([]domain.Listing, error) {
	f.since = since
	return f.listings, f.listErr
}

type fakeFilterRepo struct {
	filters []domain.FilterWithUser
	err     error
}

func (f *fakeFilterRepo) ListActive(context.Context) ([]domain.FilterWithUser, error) {
	return f.filters, f.err
}

type pairKey struct{ userID, listingID string }

type fakeNotificationRepo struct {
	existing  map[pairKey]bool
	recorded  []domain.NotificationSent
	existsErr error
	recordErr error
}

func (f *fakeNotificationRepo) Exists(_ context.Context, userID, listingID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[pairKey{userID, listingID}], nil
}

func (f *fakeNotificationRepo) Record(_ context.Context, n domain.NotificationSent) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	key := pairKey{n.UserID, n.ListingID}
	if f.existing == nil {
		f.existing = map[pairKey]bool{}
	}
	if f.existing[key] {
		return domain.ErrConflict
	}
	f.existing[key] = true
	f.recorded = append(f.recorded, n)
	return nil
}

type fakeWorkerRepo struct {
	states    map[string]domain.WorkerState
	getErr    error
	upserts   []domain.WorkerState
	upsertErr error
}

func (f *fakeWorkerRepo) Get(_ context.Context, name string) (domain.WorkerState, error) {
	if f.getErr != nil {
		return domain.WorkerState{}, f.getErr
	}
	ws, ok := f.states[name]
	if !ok {
		return domain.WorkerState{}, domain.ErrNotFound
	}
	return ws, nil
}

func (f *fakeWorkerRepo) Upsert(_ context.Context, ws domain.WorkerState) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, ws)
	return nil
}

type sendCall struct {
	chatID   int64
	photoURL string
	text     string
}

// fakeTransport replays scripted results: photo sends consume photoResults,
// text sends consume textResults; an exhausted script succeeds.
type fakeTransport struct {
	photoCalls   []sendCall
	textCalls    []sendCall
	photoResults []domain.SendResult
	textResults  []domain.SendResult
	err          error
}

func (f *fakeTransport) SendMessage(_ context.Context, chatID int64, text, _ string) (domain.SendResult, error) {
	if f.err != nil {
		return domain.SendResult{}, f.err
	}
	f.textCalls = append(f.textCalls, sendCall{chatID: chatID, text: text})
	if len(f.textResults) > 0 {
		res := f.textResults[0]
		f.textResults = f.textResults[1:]
		return res, nil
	}
	return domain.SendResult{Success: true, ImageAvailable: true}, nil
}

func (f *fakeTransport) SendPhoto(_ context.Context, chatID int64, photoURL, caption, _ string) (domain.SendResult, error) {
	if f.err != nil {
		return domain.SendResult{}, f.err
	}
	f.photoCalls = append(f.photoCalls, sendCall{chatID: chatID, photoURL: photoURL, text: caption})
	if len(f.photoResults) > 0 {
		res := f.photoResults[0]
		f.photoResults = f.photoResults[1:]
		return res, nil
	}
	return domain.SendResult{Success: true, ImageAvailable: true}, nil
}

type fakeLimiter struct {
	denied map[string]time.Duration
	calls  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int64) (bool, time.Duration, error) {
	f.calls = append(f.calls, key)
	if wait, ok := f.denied[key]; ok {
		return false, wait, nil
	}
	return true, 0, nil
}

type fakePublisher struct {
	published []domain.Listing
	err       error
}

func (f *fakePublisher) PublishListingUpserted(_ context.Context, l domain.Listing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, l)
	return nil
}

func fptr(v float64) *float64 { return &v }
