package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mark-rom/egrul-bot/internal/egrul/client"
	"github.com/mark-rom/egrul-bot/internal/egrul/models"
	"github.com/mark-rom/egrul-bot/internal/egrul/registryerr"
	"github.com/mark-rom/egrul-bot/internal/egrul/store"
	egrultest "github.com/mark-rom/egrul-bot/pkg/testutil"
)

// stubRegistry is a scripted Registry. Status payloads are consumed in order; the last
// one repeats once the script runs out.
type stubRegistry struct {
	mu sync.Mutex

	tokenErr  error
	record    *models.RegistryRecord
	recordErr error

	requestPayload *models.ExtractionPayload
	requestErr     error
	statuses       []*models.ExtractionPayload
	statusErr      error

	acquireCalls int
	fetchCalls   int
	requestCalls []models.ExtractionToken
	statusCalls  []models.ExtractionToken
}

func (r *stubRegistry) AcquireToken(_ context.Context, id models.Identifier) (models.SearchToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquireCalls++
	if r.tokenErr != nil {
		return "", r.tokenErr
	}
	return models.SearchToken("search-" + id.String()), nil
}

func (r *stubRegistry) FetchRecord(_ context.Context, _ models.SearchToken) (*models.RegistryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchCalls++
	if r.recordErr != nil {
		return nil, r.recordErr
	}
	rec := *r.record
	return &rec, nil
}

func (r *stubRegistry) RequestExtraction(ctx context.Context, token models.ExtractionToken, phase client.Phase) (*models.ExtractionPayload, error) {
	if phase == client.PhaseStatus {
		return r.PollExtractionStatus(ctx, token)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCalls = append(r.requestCalls, token)
	if r.requestErr != nil {
		return nil, r.requestErr
	}
	if r.requestPayload == nil {
		return &models.ExtractionPayload{}, nil
	}
	return r.requestPayload, nil
}

func (r *stubRegistry) PollExtractionStatus(_ context.Context, token models.ExtractionToken) (*models.ExtractionPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusCalls = append(r.statusCalls, token)
	if r.statusErr != nil {
		return nil, r.statusErr
	}
	idx := len(r.statusCalls) - 1
	if idx >= len(r.statuses) {
		idx = len(r.statuses) - 1
	}
	return r.statuses[idx], nil
}

func (r *stubRegistry) DownloadReference(token models.ExtractionToken) models.DownloadReference {
	return models.DownloadReference("https://egrul.nalog.ru/vyp-download/" + string(token))
}

// stubCache is a test double for RecordCache.
type stubCache struct {
	records   map[models.Identifier]*models.RegistryRecord
	findErr   error
	saveCalls int
}

func newStubCache() *stubCache {
	return &stubCache{records: make(map[models.Identifier]*models.RegistryRecord)}
}

func (c *stubCache) FindRecord(_ context.Context, id models.Identifier) (*models.RegistryRecord, error) {
	if c.findErr != nil {
		return nil, c.findErr
	}
	if r, ok := c.records[id]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (c *stubCache) SaveRecord(_ context.Context, id models.Identifier, record *models.RegistryRecord) error {
	c.saveCalls++
	c.records[id] = record
	return nil
}

func payload(token, status string) *models.ExtractionPayload {
	p := &models.ExtractionPayload{}
	if token != "" {
		p.Token = &token
	}
	if status != "" {
		p.Status = &status
	}
	return p
}

var fixedNow = time.Date(2026, time.October, 18, 15, 4, 5, 0, time.UTC)

type LookupSuite struct {
	suite.Suite
	registry *stubRegistry
	cache    *stubCache
	logs     *bytes.Buffer
	svc      *Lookup
}

func TestLookupSuite(t *testing.T) {
	suite.Run(t, new(LookupSuite))
}

func (s *LookupSuite) SetupTest() {
	s.registry = &stubRegistry{record: egrultest.NewOrganizationRecord().Build()}
	s.cache = newStubCache()
	s.logs = &bytes.Buffer{}
	s.svc = NewLookup(s.registry,
		WithCache(s.cache),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
	)
}

func (s *LookupSuite) TestActiveOrganizationUsesToday() {
	res := s.svc.Lookup(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Require().True(res.OK())
	s.Contains(res.Message, "Компания: ПАО СБЕРБАНК\n\n")
	s.Contains(res.Message, "Президент, Председатель Правления: Греф Герман Оскарович\n")
	s.Contains(res.Message, "Адрес: Г. Москва, Ул. Вавилова, Д. 19\n")
	s.True(strings.HasSuffix(res.Message, "\n\nДействует на 18.10.2026"), res.Message)
	s.Equal(models.KindOrganization, res.Summary.Kind)
}

func (s *LookupSuite) TestTerminationDateIsVerbatim() {
	for _, date := range []string{"01.02.2015", "2015-02-01", ""} {
		s.registry.record = egrultest.NewIndividualRecord().TerminatedOn(date).Build()
		s.cache.records = map[models.Identifier]*models.RegistryRecord{}

		res := s.svc.Lookup(context.Background(), egrultest.TestIdentifiers.IndividualINN)
		s.Require().True(res.OK())
		s.Equal("ИП: Иванов Иван Иванович\nИНН: 500100732259\nОГРНИП: 304500116000157\n\nРегистрация прекращена "+date, res.Message)
		s.False(res.Summary.Active)
	}
}

func (s *LookupSuite) TestInvalidIdentifierSkipsRegistry() {
	res := s.svc.Lookup(context.Background(), "ООО Ромашка")

	s.False(res.OK())
	s.Equal(registryerr.MsgInvalidIdentifier, res.Message)
	s.Equal(registryerr.KindUser, res.Kind())
	s.Zero(s.registry.acquireCalls)
}

func (s *LookupSuite) TestRejectedTokenGivesGenericMessage() {
	s.registry.tokenErr = registryerr.New(registryerr.CategoryRejected, "acquire_token", "unexpected status code: 503", nil)

	res := s.svc.Lookup(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Equal(registryerr.MsgInternal, res.Message)
	s.NotContains(res.Message, "503")
	s.Equal(registryerr.CategoryRejected, res.Category())
	s.Contains(s.logs.String(), "registry unreachable")
	s.Contains(s.logs.String(), "503")
}

func (s *LookupSuite) TestNoMatchIsShownToUser() {
	s.registry.recordErr = registryerr.User(registryerr.CategoryNoMatch, "fetch_record", registryerr.MsgNoMatch)

	res := s.svc.Lookup(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Equal(registryerr.MsgNoMatch, res.Message)
	s.Equal(registryerr.KindUser, res.Kind())
	s.NotContains(s.logs.String(), `"level":"ERROR"`)
}

func (s *LookupSuite) TestMissingFieldIsContractViolation() {
	s.registry.record = egrultest.NewOrganizationRecord().Without("p").Build()

	res := s.svc.Lookup(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Equal(registryerr.MsgInternal, res.Message)
	s.Equal(registryerr.CategoryMalformedResponse, res.Category())
	s.Contains(s.logs.String(), "registry contract violation")
	s.Zero(s.cache.saveCalls, "broken records are not cached")
}

func (s *LookupSuite) TestCacheServesRepeatLookups() {
	ctx := context.Background()

	first := s.svc.Lookup(ctx, egrultest.TestIdentifiers.OrganizationINN)
	second := s.svc.Lookup(ctx, egrultest.TestIdentifiers.OrganizationINN)

	s.Require().True(first.OK())
	s.Equal(first.Message, second.Message)
	s.Equal(1, s.registry.acquireCalls)
	s.Equal(1, s.cache.saveCalls)
}

func (s *LookupSuite) TestPaddedIdentifierIsDeclined() {
	res := s.svc.Lookup(context.Background(), " "+egrultest.TestIdentifiers.OrganizationINN+" ")

	s.Equal(registryerr.MsgInvalidIdentifier, res.Message)
	s.Equal(registryerr.CategoryInvalidIdentifier, res.Category())
	s.Zero(s.registry.acquireCalls)
}

func (s *LookupSuite) TestCacheFailureFallsBackToRegistry() {
	s.cache.findErr = errors.New("redis: connection refused")

	res := s.svc.Lookup(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.True(res.OK())
	s.Equal(1, s.registry.acquireCalls)
	s.Contains(s.logs.String(), "record cache read failed")
}

type ExtractionSuite struct {
	suite.Suite
	registry *stubRegistry
	svc      *Extraction
}

func TestExtractionSuite(t *testing.T) {
	suite.Run(t, new(ExtractionSuite))
}

func (s *ExtractionSuite) SetupTest() {
	s.registry = &stubRegistry{
		record:   egrultest.NewOrganizationRecord().WithToken("row-token").Build(),
		statuses: []*models.ExtractionPayload{payload("", "ready")},
	}
	s.svc = NewExtraction(s.registry,
		WithPollInterval(time.Millisecond),
		WithLogger(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))),
	)
}

func (s *ExtractionSuite) TestReadyImmediately() {
	res := s.svc.RequestDocument(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Require().True(res.OK())
	s.Equal(models.DownloadReference("https://egrul.nalog.ru/vyp-download/row-token"), res.Document)
	s.Equal(string(res.Document), res.Message)
	s.Equal([]models.ExtractionToken{"row-token"}, s.registry.requestCalls)
	s.Len(s.registry.statusCalls, 1)
}

func (s *ExtractionSuite) TestRequestRotationIsAdopted() {
	s.registry.requestPayload = payload("rotated-on-request", "")

	res := s.svc.RequestDocument(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Require().True(res.OK())
	s.Equal([]models.ExtractionToken{"rotated-on-request"}, s.registry.statusCalls)
	s.Equal(models.DownloadReference("https://egrul.nalog.ru/vyp-download/rotated-on-request"), res.Document)
}

func (s *ExtractionSuite) TestStatusRotationIsAdopted() {
	s.registry.statuses = []*models.ExtractionPayload{
		payload("rotated-on-status", "wait"),
		payload("", "ready"),
	}

	res := s.svc.RequestDocument(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Require().True(res.OK())
	s.Equal([]models.ExtractionToken{"row-token", "rotated-on-status"}, s.registry.statusCalls)
	s.Equal(models.DownloadReference("https://egrul.nalog.ru/vyp-download/rotated-on-status"), res.Document)
}

func (s *ExtractionSuite) TestReadyAfterPending() {
	s.registry.statuses = []*models.ExtractionPayload{
		payload("", "wait"),
		payload("", "wait"),
		payload("", "ready"),
	}

	res := s.svc.RequestDocument(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.True(res.OK())
	s.Len(s.registry.statusCalls, 3)
}

func (s *ExtractionSuite) TestPendingExhaustsBudget() {
	s.registry.statuses = []*models.ExtractionPayload{payload("", "wait")}

	res := s.svc.RequestDocument(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.False(res.OK())
	s.Equal(registryerr.MsgExtractionNotReady, res.Message)
	s.Equal(registryerr.CategoryExtractionNotReady, res.Category())
	s.Len(s.registry.statusCalls, DefaultPollAttempts, "every check counts, the first included")
	s.Empty(res.Document)
}

func (s *ExtractionSuite) TestPollAttemptsAreConfigurable() {
	s.registry.statuses = []*models.ExtractionPayload{payload("", "wait")}
	svc := NewExtraction(s.registry, WithPollAttempts(5), WithPollInterval(0))

	_, err := svc.Document(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Equal(registryerr.CategoryExtractionNotReady, registryerr.CategoryOf(err))
	s.Len(s.registry.statusCalls, 5)
}

func (s *ExtractionSuite) TestMissingStatusIsContractViolation() {
	s.registry.statuses = []*models.ExtractionPayload{payload("tok", "")}

	res := s.svc.RequestDocument(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Equal(registryerr.MsgInternal, res.Message)
	s.Equal(registryerr.CategoryMalformedResponse, res.Category())
	s.Len(s.registry.statusCalls, 1, "a missing status is not retried")
}

func (s *ExtractionSuite) TestMissingRowTokenIsContractViolation() {
	s.registry.record = egrultest.NewOrganizationRecord().Without("t").Build()

	_, err := s.svc.Document(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Equal(registryerr.CategoryMalformedResponse, registryerr.CategoryOf(err))
	s.Empty(s.registry.requestCalls)
}

func (s *ExtractionSuite) TestRejectedTokenGivesGenericMessage() {
	s.registry.tokenErr = registryerr.New(registryerr.CategoryRejected, "acquire_token", "unexpected status code: 500", nil)

	res := s.svc.RequestDocument(context.Background(), egrultest.TestIdentifiers.OrganizationINN)

	s.Equal(registryerr.MsgInternal, res.Message)
	s.Equal(registryerr.KindTransport, res.Kind())
}

func (s *ExtractionSuite) TestCancelledWaitStopsPolling() {
	s.registry.statuses = []*models.ExtractionPayload{payload("", "wait")}
	svc := NewExtraction(s.registry, WithPollInterval(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.Document(ctx, egrultest.TestIdentifiers.OrganizationINN)

	s.Less(time.Since(start), time.Second)
	s.Equal(registryerr.KindTransport, registryerr.KindOf(err))
	s.Len(s.registry.statusCalls, 1)
}

func TestServicesAreSafeForConcurrentUse(t *testing.T) {
	registry := &stubRegistry{
		record:   egrultest.NewOrganizationRecord().Build(),
		statuses: []*models.ExtractionPayload{payload("", "ready")},
	}
	lookup := NewLookup(registry)
	extraction := NewExtraction(registry, WithPollInterval(0))

	result := egrultest.RunConcurrent(50, func(idx int) error {
		if idx%2 == 0 {
			_, err := lookup.Summary(context.Background(), egrultest.TestIdentifiers.OrganizationINN)
			return err
		}
		_, err := extraction.Document(context.Background(), egrultest.TestIdentifiers.OrganizationINN)
		return err
	})

	assert.Equal(t, int32(50), result.Successes)
	require.Equal(t, int32(50), result.Total())
}
