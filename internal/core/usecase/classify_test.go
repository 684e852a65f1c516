package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

type documentRepoFake struct {
	mu sync.Mutex

	records   map[string]domain.DocumentRecord
	findErr   error
	updateErr error
	createErr error
	// findHook runs after each lookup, outside the lock.
	findHook func()

	findCalls   int
	updateCalls int
	created     []domain.DocumentRecord
}

func newDocumentRepoFake(records ...domain.DocumentRecord) *documentRepoFake {
	f := &documentRepoFake{records: map[string]domain.DocumentRecord{}}
	for _, r := range records {
		f.records[domain.StorageKeyFor(r.CustomerID, r.Filename)] = r
	}
	return f
}

func (f *documentRepoFake) Find(_ context.Context, customerID int64, filename string) (*domain.DocumentRecord, error) {
	f.mu.Lock()
	f.findCalls++
	findErr, hook := f.findErr, f.findHook
	record, ok := f.records[domain.StorageKeyFor(customerID, filename)]
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if findErr != nil {
		return nil, findErr
	}
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "find document", errors.New("no rows"))
	}
	return &record, nil
}

func (f *documentRepoFake) UpdateClassification(_ context.Context, record *domain.DocumentRecord, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	key := domain.StorageKeyFor(record.CustomerID, record.Filename)
	stored := f.records[key]
	stored.Classification = &label
	stored.Version++
	f.records[key] = stored
	record.Classification = &label
	record.Version = stored.Version
	return nil
}

func (f *documentRepoFake) Create(_ context.Context, record *domain.DocumentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	key := domain.StorageKeyFor(record.CustomerID, record.Filename)
	if _, exists := f.records[key]; exists {
		return domain.WrapError(domain.ErrConflict, "create document", errors.New("unique violation"))
	}
	record.ID = int64(len(f.records) + 1)
	record.Version = 1
	f.records[key] = *record
	f.created = append(f.created, *record)
	return nil
}

func (f *documentRepoFake) ListByCustomer(_ context.Context, customerID int64) ([]domain.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DocumentRecord
	for _, r := range f.records {
		if r.CustomerID == customerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *documentRepoFake) EnsureCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	return &c, nil
}

func (f *documentRepoFake) label(customerID int64, filename string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.records[domain.StorageKeyFor(customerID, filename)]
	return r.Label()
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
	putErr  error
	delay   time.Duration

	getCalls    int
	putCalls    int
	deleteCalls int
	bucket      string
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}}
}

func (f *storageFake) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	f.getCalls++
	f.bucket = bucket
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return data, nil
}

func (f *storageFake) gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func (f *storageFake) Put(_ context.Context, bucket, key string, body io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	f.bucket = bucket
	if f.putErr != nil {
		return f.putErr
	}
	if _, exists := f.objects[key]; exists {
		return domain.WrapError(domain.ErrConflict, "put object", errors.New("object exists"))
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *storageFake) Delete(_ context.Context, _, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	delete(f.objects, key)
	return nil
}

func (f *storageFake) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

// textExtractorFake treats stored bytes as the extracted text.
type textExtractorFake struct {
	err   error
	calls atomic.Int32
}

func (f *textExtractorFake) Extract(_ context.Context, _ string, content []byte) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return string(content), nil
}

// keywordClassifierFake labels text by the first matching keyword.
type keywordClassifierFake struct {
	err   error
	calls atomic.Int32
}

func (f *keywordClassifierFake) Classify(_ context.Context, text string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "balance"):
		return "bank_statement", nil
	case strings.Contains(lower, "license"):
		return "driver_license", nil
	default:
		return "invoice", nil
	}
}

type projectorFake struct {
	err    error
	labels []string
}

func (f *projectorFake) ProjectClassification(_ context.Context, _ domain.DocumentRecord, label string) error {
	f.labels = append(f.labels, label)
	return f.err
}

type classifyFixture struct {
	repo       *documentRepoFake
	storage    *storageFake
	extractor  *textExtractorFake
	classifier *keywordClassifierFake
	projector  *projectorFake
	uc         *ClassifyDocumentUseCase
}

func newClassifyFixture(t *testing.T) *classifyFixture {
	t.Helper()
	policy, err := domain.NewExtensionPolicy(nil)
	if err != nil {
		t.Fatalf("NewExtensionPolicy() error = %v", err)
	}
	f := &classifyFixture{
		repo: newDocumentRepoFake(domain.DocumentRecord{
			ID: 1, CustomerID: 1, Filename: "test.pdf", StorageKey: "1/test.pdf", Version: 1,
		}),
		storage:    newStorageFake(),
		extractor:  &textExtractorFake{},
		classifier: &keywordClassifierFake{},
		projector:  &projectorFake{},
	}
	f.storage.objects["1/test.pdf"] = []byte("Account statement. Opening balance 100.00")
	f.uc = NewClassifyDocumentUseCase(policy, f.repo, f.storage, f.extractor, f.classifier, ClassifyOptions{
		Bucket:       "documents",
		FetchTimeout: time.Second,
		Projector:    f.projector,
	})
	return f
}

func TestClassifyDocumentEndToEnd(t *testing.T) {
	f := newClassifyFixture(t)

	result, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	if err != nil {
		t.Fatalf("ClassifyDocument() error = %v", err)
	}
	want := domain.ClassificationResult{FileClass: "bank_statement", Filename: "test.pdf", CustomerID: 1}
	if *result != want {
		t.Fatalf("ClassifyDocument() = %+v, want %+v", *result, want)
	}
	if got := f.repo.label(1, "test.pdf"); got != "bank_statement" {
		t.Fatalf("expected stored classification bank_statement, got %q", got)
	}
	if f.storage.bucket != "documents" {
		t.Fatalf("expected fetch from configured bucket, got %q", f.storage.bucket)
	}
	if len(f.projector.labels) != 1 || f.projector.labels[0] != "bank_statement" {
		t.Fatalf("expected one projection, got %v", f.projector.labels)
	}
}

func TestClassifyDocumentMissingRecord(t *testing.T) {
	f := newClassifyFixture(t)

	_, err := f.uc.ClassifyDocument(context.Background(), 1, "missing.pdf")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if f.storage.getCalls != 0 {
		t.Fatalf("expected no fetch, got %d", f.storage.getCalls)
	}
	if f.repo.updateCalls != 0 {
		t.Fatalf("expected no store write, got %d", f.repo.updateCalls)
	}
}

func TestClassifyDocumentFetchFailure(t *testing.T) {
	f := newClassifyFixture(t)
	f.storage.getErr = domain.WrapError(domain.ErrTemporary, "gcs get", errors.New("503"))

	_, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if f.repo.updateCalls != 0 {
		t.Fatalf("update must never be invoked after fetch failure, got %d", f.repo.updateCalls)
	}
	if f.extractor.calls.Load() != 0 {
		t.Fatalf("extraction must not run after fetch failure")
	}
}

func TestClassifyDocumentMissingObjectIsFetchError(t *testing.T) {
	f := newClassifyFixture(t)
	delete(f.storage.objects, "1/test.pdf")

	_, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	if !errors.Is(err, domain.ErrFetch) || !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("expected ErrFetch wrapping ErrObjectNotFound, got %v", err)
	}
	if errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("missing object must not be reported as missing record: %v", err)
	}
}

func TestClassifyDocumentFetchTimeout(t *testing.T) {
	policy, _ := domain.NewExtensionPolicy(nil)
	repo := newDocumentRepoFake(domain.DocumentRecord{CustomerID: 1, Filename: "slow.pdf", StorageKey: "1/slow.pdf"})
	storage := newStorageFake()
	storage.delay = time.Second
	uc := NewClassifyDocumentUseCase(policy, repo, storage, &textExtractorFake{}, &keywordClassifierFake{}, ClassifyOptions{
		FetchTimeout: 10 * time.Millisecond,
	})

	_, err := uc.ClassifyDocument(context.Background(), 1, "slow.pdf")
	if !errors.Is(err, domain.ErrFetch) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrFetch with deadline, got %v", err)
	}
}

func TestClassifyDocumentUnsupportedExtensionPerformsNoIO(t *testing.T) {
	f := newClassifyFixture(t)

	_, err := f.uc.ClassifyDocument(context.Background(), 1, "file.exe")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if f.repo.findCalls != 0 || f.repo.updateCalls != 0 || f.storage.getCalls != 0 {
		t.Fatalf("expected no store calls, got find=%d update=%d get=%d",
			f.repo.findCalls, f.repo.updateCalls, f.storage.getCalls)
	}
}

func TestClassifyDocumentExtractionFailureLeavesRecord(t *testing.T) {
	f := newClassifyFixture(t)
	f.extractor.err = domain.NewExtractionError(domain.FormatPDF, errors.New("xref missing"))

	_, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if f.classifier.calls.Load() != 0 || f.repo.updateCalls != 0 {
		t.Fatalf("expected short-circuit after extraction failure")
	}
	if got := f.repo.label(1, "test.pdf"); got != "" {
		t.Fatalf("expected record untouched, got %q", got)
	}
}

func TestClassifyDocumentEmptyTextIsExtractionError(t *testing.T) {
	f := newClassifyFixture(t)
	f.storage.objects["1/test.pdf"] = []byte("  \n\t ")

	_, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	if !errors.Is(err, domain.ErrExtraction) || !errors.Is(err, domain.ErrEmptyText) {
		t.Fatalf("expected ErrExtraction wrapping ErrEmptyText, got %v", err)
	}
	if f.classifier.calls.Load() != 0 {
		t.Fatalf("classifier must not run on empty text")
	}
}

func TestClassifyDocumentClassifierFailureKinds(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind error
	}{
		"model load": {err: domain.WrapError(domain.ErrModelLoad, "classify", errors.New("missing")), kind: domain.ErrModelLoad},
		"inference":  {err: domain.WrapError(domain.ErrClassification, "classify", errors.New("panic")), kind: domain.ErrClassification},
		"untyped":    {err: errors.New("boom"), kind: domain.ErrClassification},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newClassifyFixture(t)
			f.classifier.err = tc.err

			_, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if f.repo.updateCalls != 0 {
				t.Fatalf("expected no store write")
			}
		})
	}
}

func TestClassifyDocumentPersistenceFailure(t *testing.T) {
	f := newClassifyFixture(t)
	f.repo.updateErr = errors.New("disk full")

	_, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if got := f.repo.label(1, "test.pdf"); got != "" {
		t.Fatalf("expected record untouched after rollback, got %q", got)
	}
	if len(f.projector.labels) != 0 {
		t.Fatalf("projection must only follow a commit")
	}
}

func TestClassifyDocumentVersionConflict(t *testing.T) {
	f := newClassifyFixture(t)
	f.repo.updateErr = domain.WrapError(domain.ErrConflict, "update classification",
		domain.WrapError(domain.ErrPersistence, "update classification", errors.New("version changed")))

	_, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	if !errors.Is(err, domain.ErrConflict) || !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected conflict persistence error, got %v", err)
	}
}

func TestClassifyDocumentProjectionFailureIsNotReturned(t *testing.T) {
	f := newClassifyFixture(t)
	f.projector.err = errors.New("neo4j unavailable")

	if _, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf"); err != nil {
		t.Fatalf("ClassifyDocument() error = %v", err)
	}
	if got := f.repo.label(1, "test.pdf"); got != "bank_statement" {
		t.Fatalf("expected committed label, got %q", got)
	}
}

func TestClassifyDocumentDeterministic(t *testing.T) {
	f := newClassifyFixture(t)

	first, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	if err != nil {
		t.Fatalf("ClassifyDocument() error = %v", err)
	}
	second, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	if err != nil {
		t.Fatalf("ClassifyDocument() error = %v", err)
	}
	if *first != *second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestClassifyDocumentSharesOverlappingRuns(t *testing.T) {
	f := newClassifyFixture(t)
	f.storage.delay = 100 * time.Millisecond

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
			if err != nil {
				errs <- err
				return
			}
			if result.FileClass != "bank_statement" {
				errs <- errors.New("unexpected label " + result.FileClass)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("ClassifyDocument() error = %v", err)
	}
	if got := f.extractor.calls.Load(); got >= callers {
		t.Fatalf("expected overlapping requests to share a run, got %d extractions", got)
	}
}

func TestClassifyDocumentSharedRunSurvivesCallerCancel(t *testing.T) {
	f := newClassifyFixture(t)
	f.storage.delay = 200 * time.Millisecond

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.uc.ClassifyDocument(firstCtx, 1, "test.pdf")
		firstErr <- err
	}()

	deadline := time.Now().Add(time.Second)
	for f.storage.gets() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first run never reached storage")
		}
		time.Sleep(time.Millisecond)
	}

	secondDone := make(chan struct{})
	var second *domain.ClassificationResult
	var secondErr error
	go func() {
		defer close(secondDone)
		second, secondErr = f.uc.ClassifyDocument(context.Background(), 1, "test.pdf")
	}()

	time.Sleep(30 * time.Millisecond)
	cancelFirst()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled caller to see context.Canceled, got %v", err)
	}
	<-secondDone
	if secondErr != nil {
		t.Fatalf("ClassifyDocument() error = %v", secondErr)
	}
	if second.FileClass != "bank_statement" {
		t.Fatalf("expected bank_statement, got %q", second.FileClass)
	}
	if got := f.storage.gets(); got != 1 {
		t.Fatalf("expected one shared fetch, got %d", got)
	}
	if got := f.repo.label(1, "test.pdf"); got != "bank_statement" {
		t.Fatalf("expected committed label, got %q", got)
	}
}
